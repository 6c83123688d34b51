package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Provider persists encoded images.
type Provider interface {
	Upload(ctx context.Context, input UploadInput) (UploadOutput, error)
	Delete(ctx context.Context, input DeleteInput) error
	GetURL(ctx context.Context, input GetURLInput) (string, error)
	GetSignedURL(ctx context.Context, input GetSignedURLInput) (string, error)
	List(ctx context.Context, input ListInput) ([]FileInfo, error)
	Name() string
}

// UploadInput 上传输入
type UploadInput struct {
	File        io.Reader
	Filename    string
	Folder      string
	ContentType string
	Metadata    map[string]string
}

// UploadOutput 上传输出
type UploadOutput struct {
	URL      string
	Filename string
	Size     int64
	Metadata map[string]string
}

// DeleteInput 删除输入
type DeleteInput struct {
	Filename string
	Folder   string
}

// GetURLInput 获取 URL 输入
type GetURLInput struct {
	Filename string
	Folder   string
}

// GetSignedURLInput 获取签名 URL 输入
type GetSignedURLInput struct {
	Filename string
	Folder   string
	Expires  time.Duration
}

// ListInput 列表输入
type ListInput struct {
	Folder string
	Prefix string
	Limit  int
}

// FileInfo 文件信息
type FileInfo struct {
	Name      string
	Size      int64
	IsDir     bool
	UpdatedAt int64
}

// Provider types.
const (
	TypeLocal = "local"
	TypeOSS   = "oss"
)

// Config selects and configures a Provider.
type Config struct {
	Type  string      `mapstructure:"type" json:"type" yaml:"type" default:"local" validate:"oneof=local oss"`
	Local LocalConfig `mapstructure:"local" json:"local" yaml:"local"`
	OSS   OSSConfig   `mapstructure:"oss" json:"oss" yaml:"oss"`
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	BasePath string `mapstructure:"base-path" json:"basePath" yaml:"base-path" default:"./data"`
	BaseURL  string `mapstructure:"base-url" json:"baseURL" yaml:"base-url" default:"/media"`
}

// OSSConfig 阿里云 OSS 配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access-key-id" json:"-" yaml:"access-key-id"`
	AccessKeySecret string `mapstructure:"access-key-secret" json:"-" yaml:"access-key-secret"`
	Bucket          string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	Domain          string `mapstructure:"domain" json:"domain" yaml:"domain"`
}

// New 从配置创建提供者
func New(config Config) (Provider, error) {
	switch config.Type {
	case "", TypeLocal:
		basePath := config.Local.BasePath
		if basePath == "" {
			return nil, fmt.Errorf("local provider requires base-path")
		}
		baseURL := config.Local.BaseURL
		if baseURL == "" {
			baseURL = "/media" // 默认值
		}
		return NewLocalProvider(basePath, baseURL)

	case TypeOSS:
		c := config.OSS
		if c.Endpoint == "" || c.Bucket == "" {
			return nil, fmt.Errorf("oss provider requires endpoint and bucket")
		}
		return NewOSSProvider(c.Endpoint, c.AccessKeyID, c.AccessKeySecret, c.Bucket, c.Domain)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// objectPath joins folder and filename with forward slashes.
func objectPath(folder, filename string) string {
	if folder == "" {
		return filename
	}
	return folder + "/" + filename
}
