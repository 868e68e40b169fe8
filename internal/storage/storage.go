package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/legalhub/backend-go/internal/config"
)

// ObjectStorage 对象存储抽象，用于原始文件与重训数据集
type ObjectStorage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	Ready() bool
}

// NewObjectStorage 根据配置创建对象存储实现
func NewObjectStorage(cfg config.ObjectStorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(cfg.Provider) {
	case "minio":
		return NewMinioStorage(cfg)
	case "", "local":
		return NewLocalStorage(cfg.BasePath)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

// localStorage 本地磁盘实现，开发与测试环境使用
type localStorage struct {
	basePath string
}

// NewLocalStorage 创建本地磁盘存储
func NewLocalStorage(basePath string) (ObjectStorage, error) {
	if basePath == "" {
		basePath = "./uploads"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStorage{basePath: basePath}, nil
}

func (s *localStorage) resolve(key string) (string, error) {
	cleaned := filepath.Clean(key)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return filepath.Join(s.basePath, cleaned), nil
}

func (s *localStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create object file: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return file, nil
}

func (s *localStorage) Remove(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *localStorage) Ready() bool {
	info, err := os.Stat(s.basePath)
	return err == nil && info.IsDir()
}
