package storage

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MemoryStorage 内存实现，仅用于单元测试
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string][]byte),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (m *MemoryStorage) Put(key string, r io.Reader, size int64) (string, error) {
	key, ok := cleanKey(key)
	if !ok {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return m.PublicURL(key), nil
}

func (m *MemoryStorage) Get(key string) (io.ReadCloser, error) {
	key, ok := cleanKey(key)
	if !ok {
		return nil, fmt.Errorf("invalid object key %q", key)
	}
	m.mu.RLock()
	data, found := m.objects[key]
	m.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStorage) Exists(key string) bool {
	key, ok := cleanKey(key)
	if !ok {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, found := m.objects[key]
	return found
}

func (m *MemoryStorage) PublicURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	return m.baseURL + "/" + key
}
