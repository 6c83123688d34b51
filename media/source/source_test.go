package source

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/huddle-media/errors"
)

func TestParseDataURI(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0x00, 0x10}
	encoded := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name string
		ref  string
		want []byte
	}{
		{"base64", "data:image/jpeg;base64," + encoded, payload},
		{"base64 with line breaks", "data:image/jpeg;base64," + encoded[:4] + "\n" + encoded[4:], payload},
		{"unpadded base64", "data:image/jpeg;base64," + strings.TrimRight(encoded, "="), payload},
		{"percent encoded", "data:text/plain,hello%20world", []byte("hello world")},
		{"upper-case scheme", "DATA:image/png;BASE64," + encoded, payload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDataURI(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDataURIErrors(t *testing.T) {
	for _, ref := range []string{
		"image/jpeg;base64,AAAA",
		"data:image/jpeg;base64",
		"data:image/jpeg;base64,@@@@",
	} {
		_, err := ParseDataURI(ref)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecode), "ref %q: %v", ref, err)
	}
}

func TestLoaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.jpg")
	require.NoError(t, os.WriteFile(path, []byte("bytes"), 0o644))

	l := NewLoader(Config{})

	got, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), got)

	got, err = l.Load(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), got)

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeIO))
}

func TestLoaderEmptyRef(t *testing.T) {
	_, err := NewLoader(Config{}).Load(context.Background(), "  ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestLoaderURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader(Config{}, WithHTTPClient(srv.Client()))

	got, err := l.Load(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)

	_, err = l.Load(context.Background(), srv.URL+"/missing.png")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeIO))
}

func TestLoaderOriginPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	denied := NewLoader(Config{AllowedOrigins: []string{"https://cdn.huddle.example"}}, WithHTTPClient(srv.Client()))
	_, err := denied.Load(context.Background(), srv.URL+"/a.jpg")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSecurity))

	allowed := NewLoader(Config{AllowedOrigins: []string{srv.URL + "/"}}, WithHTTPClient(srv.Client()))
	got, err := allowed.Load(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
}

func TestLoaderRedirectOriginPolicy(t *testing.T) {
	var evilHits atomic.Int32
	evil := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		evilHits.Add(1)
		_, _ = w.Write([]byte("internal-secret"))
	}))
	defer evil.Close()

	var good *httptest.Server
	good = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/away.png":
			http.Redirect(w, r, evil.URL+"/secret", http.StatusFound)
		case "/moved.png":
			http.Redirect(w, r, good.URL+"/ok.png", http.StatusMovedPermanently)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	defer good.Close()

	l := NewLoader(Config{AllowedOrigins: []string{good.URL}}, WithHTTPClient(good.Client()))

	data, err := l.Load(context.Background(), good.URL+"/away.png")
	require.Error(t, err)
	assert.Nil(t, data)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSecurity), "got %v", err)
	assert.Zero(t, evilHits.Load())

	data, err = l.Load(context.Background(), good.URL+"/moved.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
}

func TestLoaderRefusesPrivateNetworks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := NewLoader(Config{}).Load(context.Background(), srv.URL+"/a.png")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSecurity), "got %v", err)
	assert.Equal(t, apperrors.CodePrivateNetwork, apperrors.FromError(err).Code)

	data, err := NewLoader(Config{AllowPrivateNetworks: true}).Load(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
}

func TestIsPrivateIP(t *testing.T) {
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.1.1", "169.254.169.254", "::1", "fe80::1", "fd00::1", "0.0.0.0"} {
		assert.True(t, isPrivateIP(net.ParseIP(ip)), ip)
	}
	for _, ip := range []string{"8.8.8.8", "203.0.113.7", "2001:4860:4860::8888"} {
		assert.False(t, isPrivateIP(net.ParseIP(ip)), ip)
	}
}

func TestLoaderFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	l := NewLoader(Config{FetchTimeout: 50 * time.Millisecond}, WithHTTPClient(srv.Client()))
	_, err := l.Load(context.Background(), srv.URL+"/slow.jpg")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout), "got %v", err)
}

func TestReadAllLimit(t *testing.T) {
	data, err := ReadAll(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = ReadAll(strings.NewReader("123456"), 5)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSourceTooLarge, apperrors.FromError(err).Code)
}

func TestLoaderDataURITooLarge(t *testing.T) {
	l := NewLoader(Config{MaxBytes: 2})
	_, err := l.Load(context.Background(), "data:text/plain,abc")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeIO))
}

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"":                       KindEmpty,
		"  ":                     KindEmpty,
		"data:image/png;base64,": KindDataURI,
		"DATA:,x":                KindDataURI,
		"https://cdn.example/a":  KindURL,
		"HTTP://cdn.example/a":   KindURL,
		"/tmp/a.png":             KindFile,
		"file:///tmp/a.png":      KindFile,
	}
	for ref, want := range tests {
		assert.Equal(t, want, KindOf(ref), "ref %q", ref)
	}
}

func TestLoaderCachesRemoteFetches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	l := NewLoader(Config{CacheTTL: time.Minute}, WithHTTPClient(srv.Client()))
	for i := 0; i < 3; i++ {
		got, err := l.Load(context.Background(), srv.URL+"/a.png")
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), got)
	}
	assert.Equal(t, int32(1), hits.Load())

	stats, ok := l.CacheStats()
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.Hits)

	_, ok = NewLoader(Config{}).CacheStats()
	assert.False(t, ok)
}
