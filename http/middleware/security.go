package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/leeforge/huddle-media/http/responder"
)

// CORSConfig CORS 配置
type CORSConfig struct {
	// AllowedOrigins lists the browser origins allowed to call the API;
	// "*" allows any. Empty disables CORS handling.
	AllowedOrigins   []string `mapstructure:"allowed-origins" json:"allowedOrigins" yaml:"allowed-origins"`
	AllowedMethods   []string `mapstructure:"allowed-methods" json:"allowedMethods" yaml:"allowed-methods" default:"[\"GET\",\"POST\",\"OPTIONS\"]"`
	AllowedHeaders   []string `mapstructure:"allowed-headers" json:"allowedHeaders" yaml:"allowed-headers" default:"[\"Content-Type\",\"X-Trace-ID\",\"X-API-Key\"]"`
	AllowCredentials bool     `mapstructure:"allow-credentials" json:"allowCredentials" yaml:"allow-credentials"`
	MaxAge           int      `mapstructure:"max-age" json:"maxAge" yaml:"max-age" default:"600"`
}

func (c CORSConfig) allowed(origin string) (string, bool) {
	for _, o := range c.AllowedOrigins {
		if o == "*" && !c.AllowCredentials {
			return "*", true
		}
		if o == "*" || strings.EqualFold(o, origin) {
			return origin, true
		}
	}
	return "", false
}

// CORS 中间件. Requests without an Origin header pass through untouched;
// preflights from unknown origins are rejected with 403.
func CORS(config CORSConfig) func(next http.Handler) http.Handler {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		if len(config.AllowedOrigins) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			allowOrigin, ok := config.allowed(origin)
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !ok {
				if preflight {
					responder.WriteError(w, r, http.StatusForbidden,
						responder.NewError(responder.ErrCodeForbidden, "origin not allowed"), ResponseMeta(r)...)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Expose-Headers", TraceIDHeader+", "+RequestIDHeader)
			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// 预检请求
			if preflight {
				if methods != "" {
					w.Header().Set("Access-Control-Allow-Methods", methods)
				}
				if headers != "" {
					w.Header().Set("Access-Control-Allow-Headers", headers)
				}
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecureHeaders sets the response headers an API that only returns JSON
// should always send.
func SecureHeaders() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 防止 MIME 类型嗅探
			w.Header().Set("X-Content-Type-Options", "nosniff")
			// 防止点击劫持
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("Cache-Control", "no-store")

			next.ServeHTTP(w, r)
		})
	}
}
