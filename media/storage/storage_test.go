package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderRoundTrip(t *testing.T) {
	base := t.TempDir()
	p, err := NewLocalProvider(base, "/media/")
	require.NoError(t, err)
	ctx := context.Background()

	out, err := p.Upload(ctx, UploadInput{
		File:     strings.NewReader("data:image/jpeg;base64,AAAA"),
		Filename: "cover.b64",
		Folder:   "compressed",
	})
	require.NoError(t, err)
	assert.Equal(t, "/media/compressed/cover.b64", out.URL)
	assert.Equal(t, int64(27), out.Size)

	b, err := os.ReadFile(filepath.Join(base, "compressed", "cover.b64"))
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", string(b))

	signed, err := p.GetSignedURL(ctx, GetSignedURLInput{Filename: "cover.b64", Folder: "compressed"})
	require.NoError(t, err)
	assert.Equal(t, out.URL, signed)

	require.NoError(t, p.Delete(ctx, DeleteInput{Filename: "cover.b64", Folder: "compressed"}))
	_, err = os.Stat(filepath.Join(base, "compressed", "cover.b64"))
	assert.True(t, os.IsNotExist(err))

	// Deleting a missing file is not an error.
	assert.NoError(t, p.Delete(ctx, DeleteInput{Filename: "cover.b64", Folder: "compressed"}))
}

func TestLocalProviderList(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir(), "/media")
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"b.b64", "a.b64", "skip.txt", "c.b64"} {
		_, err := p.Upload(ctx, UploadInput{File: strings.NewReader("x"), Filename: name, Folder: "out"})
		require.NoError(t, err)
	}

	files, err := p.List(ctx, ListInput{Folder: "out"})
	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, "a.b64", files[0].Name)

	files, err = p.List(ctx, ListInput{Folder: "out", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = p.List(ctx, ListInput{Folder: "out", Prefix: "s"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "skip.txt", files[0].Name)
}

func TestLocalProviderRejectsEscape(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir(), "/media")
	require.NoError(t, err)

	_, err = p.Upload(context.Background(), UploadInput{
		File:     strings.NewReader("x"),
		Filename: "../../etc/passwd",
	})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	p, err := New(Config{Type: TypeLocal, Local: LocalConfig{BasePath: t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, TypeLocal, p.Name())

	_, err = New(Config{Type: TypeLocal})
	assert.Error(t, err)

	_, err = New(Config{Type: TypeOSS})
	assert.Error(t, err)

	_, err = New(Config{Type: "s3"})
	assert.Error(t, err)
}

func TestOSSProviderURLs(t *testing.T) {
	p, err := New(Config{Type: TypeOSS, OSS: OSSConfig{
		Endpoint:        "oss-cn-hangzhou.aliyuncs.com",
		AccessKeyID:     "test-id",
		AccessKeySecret: "test-secret",
		Bucket:          "huddle",
	}})
	require.NoError(t, err)
	assert.Equal(t, TypeOSS, p.Name())
	ctx := context.Background()

	u, err := p.GetURL(ctx, GetURLInput{Folder: "/compressed/", Filename: "a.b64"})
	require.NoError(t, err)
	assert.Equal(t, "https://huddle.oss-cn-hangzhou.aliyuncs.com/compressed/a.b64", u)

	signed, err := p.GetSignedURL(ctx, GetSignedURLInput{Folder: "compressed", Filename: "a.b64", Expires: 10 * time.Minute})
	require.NoError(t, err)
	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/compressed/a.b64", parsed.Path)
	assert.NotEmpty(t, parsed.Query().Get("Signature"))
	assert.NotEmpty(t, parsed.Query().Get("Expires"))
}

func TestOSSProviderCustomDomain(t *testing.T) {
	p, err := NewOSSProvider("oss-cn-hangzhou.aliyuncs.com", "id", "secret", "huddle", "cdn.huddle.example/")
	require.NoError(t, err)

	u, err := p.GetURL(context.Background(), GetURLInput{Filename: "a.b64"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.huddle.example/a.b64", u)
}
