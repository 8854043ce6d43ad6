package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DiskStorage 本地磁盘实现
// 对象按 key 的目录结构落在 root 之下，通过静态路由对外提供访问
type DiskStorage struct {
	root    string // 本地存储根目录
	baseURL string // 对外 URL 前缀，如 "https://chat.example.edu/static/voice"
}

// NewDiskStorage 创建磁盘存储，root 目录不存在时自动创建
func NewDiskStorage(root, baseURL string) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &DiskStorage{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Put 保存对象到磁盘
// 写入失败时清理半成品文件，避免残留损坏对象
func (d *DiskStorage) Put(key string, r io.Reader, size int64) (string, error) {
	key, ok := cleanKey(key)
	if !ok {
		return "", fmt.Errorf("invalid object key %q", key)
	}

	dst := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(dst) // 回滚半成品
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	zap.L().Info("object stored", zap.String("key", key), zap.Int64("size", size))
	return d.PublicURL(key), nil
}

// Get 读取对象内容，调用方负责 Close
func (d *DiskStorage) Get(key string) (io.ReadCloser, error) {
	key, ok := cleanKey(key)
	if !ok {
		return nil, fmt.Errorf("invalid object key %q", key)
	}
	return os.Open(filepath.Join(d.root, filepath.FromSlash(key)))
}

// Exists 判断对象是否存在
func (d *DiskStorage) Exists(key string) bool {
	key, ok := cleanKey(key)
	if !ok {
		return false
	}
	info, err := os.Stat(filepath.Join(d.root, filepath.FromSlash(key)))
	return err == nil && !info.IsDir()
}

// PublicURL 生成对外访问 URL
func (d *DiskStorage) PublicURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	return d.baseURL + "/" + key
}
