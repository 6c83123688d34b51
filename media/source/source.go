// Package source resolves image references (data URIs, remote URLs and
// local files) into raw bytes.
package source

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/huddle-media/cache"
	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/logging"
)

// DefaultMaxBytes caps how much a single source may read.
const DefaultMaxBytes int64 = 20 << 20

// Config configures a Loader.
type Config struct {
	// AllowedOrigins lists scheme://host[:port] values remote images may be
	// fetched from. Empty allows any origin.
	AllowedOrigins []string `mapstructure:"allowed-origins" json:"allowedOrigins" yaml:"allowed-origins"`
	// MaxBytes caps the size of any single source.
	MaxBytes int64 `mapstructure:"max-bytes" json:"maxBytes" yaml:"max-bytes" default:"20971520" validate:"gt=0"`
	// FetchTimeout bounds remote fetches. Zero leaves it to the caller's
	// context.
	FetchTimeout time.Duration `mapstructure:"fetch-timeout" json:"fetchTimeout" yaml:"fetch-timeout"`
	// CacheTTL keeps fetched remote images for this long. Zero disables the
	// cache.
	CacheTTL time.Duration `mapstructure:"cache-ttl" json:"cacheTTL" yaml:"cache-ttl"`
	// CacheMaxBytes bounds the total size of cached remote images.
	CacheMaxBytes int64 `mapstructure:"cache-max-bytes" json:"cacheMaxBytes" yaml:"cache-max-bytes" default:"67108864" validate:"gte=0"`
	// AllowPrivateNetworks lets the built-in client connect to loopback,
	// private and link-local addresses. Off by default.
	AllowPrivateNetworks bool `mapstructure:"allow-private-networks" json:"allowPrivateNetworks" yaml:"allow-private-networks"`
}

// maxRedirects matches the net/http default.
const maxRedirects = 10

// Loader loads image bytes from a reference.
type Loader struct {
	config Config
	client *http.Client
	logger logging.Logger
	cache  *cache.TTLCache
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the client used for remote sources. The loader
// works on a copy whose redirects are checked against AllowedOrigins; the
// client's own transport is kept, so AllowPrivateNetworks does not apply.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		l.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithCache caches remote fetches by URL.
func WithCache(c *cache.TTLCache) Option {
	return func(l *Loader) {
		l.cache = c
	}
}

// NewLoader creates a Loader. A positive CacheTTL installs a cache unless
// WithCache supplied one.
func NewLoader(config Config, opts ...Option) *Loader {
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	l := &Loader{
		config: config,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		l.client = newClient(config.AllowPrivateNetworks)
	}
	l.client = l.guardRedirects(l.client)
	if l.cache == nil && config.CacheTTL > 0 {
		l.cache = cache.NewTTLCache(config.CacheTTL, config.CacheMaxBytes)
	}
	return l
}

// CacheStats reports the remote fetch cache statistics, if caching is on.
func (l *Loader) CacheStats() (cache.CacheStats, bool) {
	if l.cache == nil {
		return cache.CacheStats{}, false
	}
	return l.cache.Stats(), true
}

// Load resolves ref. Data URIs are decoded in place, http(s) URLs are
// fetched, and anything else is read as a local file path.
func (l *Loader) Load(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	switch KindOf(ref) {
	case KindEmpty:
		return nil, apperrors.NewValidation("image source is empty")
	case KindDataURI:
		return l.loadDataURI(ref)
	case KindURL:
		return l.loadURL(ctx, ref)
	default:
		return l.loadFile(strings.TrimPrefix(ref, "file://"))
	}
}

// Kind classifies an image reference.
type Kind int

const (
	KindEmpty Kind = iota
	KindDataURI
	KindURL
	KindFile
)

// KindOf reports how Load would resolve ref.
func KindOf(ref string) Kind {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return KindEmpty
	case hasPrefixFold(ref, "data:"):
		return KindDataURI
	case hasPrefixFold(ref, "http://"), hasPrefixFold(ref, "https://"):
		return KindURL
	default:
		return KindFile
	}
}

func (l *Loader) loadDataURI(ref string) ([]byte, error) {
	data, err := ParseDataURI(ref)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.config.MaxBytes {
		return nil, tooLarge(l.config.MaxBytes)
	}
	return data, nil
}

func (l *Loader) loadURL(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return nil, apperrors.NewInvalid("source", ref, "malformed URL")
	}
	if !l.originAllowed(u) {
		return nil, apperrors.NewSecurity("image origin is not allowed").
			WithDetail("origin", origin(u))
	}

	key := u.String()
	if l.cache != nil {
		if data, ok := l.cache.Get(key); ok {
			l.logger.Debug("source.cache.hit", zap.String("origin", origin(u)), zap.Int("bytes", len(data)))
			return data, nil
		}
	}

	if l.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, apperrors.NewIO(err, "failed to build image request")
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		var appErr *apperrors.AppError
		if stderrors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeSecurity {
			l.logger.Debug("source.fetch.refused", zap.String("origin", origin(u)), zap.String("error", appErr.Message))
			return nil, appErr
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeout(err, "image fetch timed out")
		}
		return nil, apperrors.NewIO(err, "failed to fetch image").WithDetail("origin", origin(u))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewIO(nil, fmt.Sprintf("image fetch returned status %d", resp.StatusCode)).
			WithDetail("origin", origin(u))
	}

	data, err := ReadAll(resp.Body, l.config.MaxBytes)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("source.fetched",
		zap.String("origin", origin(u)),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	if l.cache != nil {
		l.cache.Set(key, data)
	}
	return data, nil
}

func newClient(allowPrivate bool) *http.Client {
	if allowPrivate {
		return &http.Client{}
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would make the dialed address meaningless.
	t.Proxy = nil
	t.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivate,
	}).DialContext
	return &http.Client{Transport: t}
}

// refusePrivate runs on every dial, after name resolution, so redirects and
// DNS names pointing inside the network are caught too.
func refusePrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || isPrivateIP(ip) {
		return apperrors.NewSecurity("image host is on a private network").
			WithCode(apperrors.CodePrivateNetwork).
			WithDetail("address", host)
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast()
}

// guardRedirects returns a copy of c that applies the origin policy to every
// redirect hop.
func (l *Loader) guardRedirects(c *http.Client) *http.Client {
	guarded := *c
	next := c.CheckRedirect
	guarded.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !l.originAllowed(req.URL) {
			return apperrors.NewSecurity("image redirected to an origin that is not allowed").
				WithDetail("origin", origin(req.URL))
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	return &guarded
}

func (l *Loader) loadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIO(err, "failed to open image file").WithDetail("path", path)
	}
	defer f.Close()
	return ReadAll(f, l.config.MaxBytes)
}

func (l *Loader) originAllowed(u *url.URL) bool {
	if len(l.config.AllowedOrigins) == 0 {
		return true
	}
	o := origin(u)
	for _, allowed := range l.config.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), o) {
			return true
		}
	}
	return false
}

func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// ReadAll reads r fully, failing with an io error once more than max bytes
// arrive. A non-positive max means DefaultMaxBytes.
func ReadAll(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, apperrors.NewIO(err, "failed to read image data")
	}
	if int64(len(data)) > max {
		return nil, tooLarge(max)
	}
	return data, nil
}

func tooLarge(max int64) error {
	return apperrors.NewIO(nil, "image data exceeds size limit").
		WithCode(apperrors.CodeSourceTooLarge).
		WithDetail("maxBytes", max)
}

// ParseDataURI decodes the payload of a data: URI. Both base64 and
// percent-encoded payloads are accepted.
func ParseDataURI(ref string) ([]byte, error) {
	if !hasPrefixFold(ref, "data:") {
		return nil, apperrors.NewDecode(nil, "not a data URI")
	}
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, apperrors.NewDecode(nil, "data URI has no payload separator")
	}
	header, payload := ref[len("data:"):comma], ref[comma+1:]

	if strings.HasSuffix(strings.ToLower(header), ";base64") {
		data, err := base64.StdEncoding.DecodeString(stripWhitespace(payload))
		if err != nil {
			// Some encoders drop the padding.
			if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(stripWhitespace(payload), "=")); rawErr == nil {
				return raw, nil
			}
			return nil, apperrors.NewDecode(err, "invalid base64 payload in data URI")
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, apperrors.NewDecode(err, "invalid percent-encoding in data URI")
	}
	return []byte(data), nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
