package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalProvider stores files under a base directory.
type LocalProvider struct {
	basePath string
	baseURL  string
}

// NewLocalProvider creates a new local storage provider
func NewLocalProvider(basePath, baseURL string) (*LocalProvider, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalProvider{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

func (p *LocalProvider) fullPath(folder, filename string) (string, error) {
	full := filepath.Join(p.basePath, folder, filename)
	rel, err := filepath.Rel(p.basePath, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the storage root", objectPath(folder, filename))
	}
	return full, nil
}

// Upload saves a file to the local filesystem
func (p *LocalProvider) Upload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	fullPath, err := p.fullPath(input.Folder, input.Filename)
	if err != nil {
		return UploadOutput{}, err
	}

	// Create directory if not exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return UploadOutput{}, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return UploadOutput{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, input.File)
	if err != nil {
		return UploadOutput{}, fmt.Errorf("failed to write file content: %w", err)
	}

	url, _ := p.GetURL(ctx, GetURLInput{Filename: input.Filename, Folder: input.Folder})
	return UploadOutput{
		URL:      url,
		Filename: input.Filename,
		Size:     size,
		Metadata: input.Metadata,
	}, nil
}

// Delete removes a file from the local filesystem
func (p *LocalProvider) Delete(ctx context.Context, input DeleteInput) error {
	fullPath, err := p.fullPath(input.Folder, input.Filename)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetURL returns the public URL for a file
func (p *LocalProvider) GetURL(ctx context.Context, input GetURLInput) (string, error) {
	// Note: We use forward slashes for URLs even on Windows
	return p.baseURL + "/" + objectPath(input.Folder, input.Filename), nil
}

// GetSignedURL for local provider just returns the public URL
func (p *LocalProvider) GetSignedURL(ctx context.Context, input GetSignedURLInput) (string, error) {
	return p.GetURL(ctx, GetURLInput{
		Filename: input.Filename,
		Folder:   input.Folder,
	})
}

// List returns the entries of a folder whose names start with Prefix,
// sorted by name.
func (p *LocalProvider) List(ctx context.Context, input ListInput) ([]FileInfo, error) {
	folder, err := p.fullPath(input.Folder, "")
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []FileInfo
	for _, entry := range entries {
		if input.Limit > 0 && len(files) >= input.Limit {
			break
		}
		if !strings.HasPrefix(entry.Name(), input.Prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Name:      entry.Name(),
			Size:      info.Size(),
			IsDir:     entry.IsDir(),
			UpdatedAt: info.ModTime().Unix(),
		})
	}

	return files, nil
}

func (p *LocalProvider) Name() string {
	return TypeLocal
}
