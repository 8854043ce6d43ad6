// Package storage 对象存储抽象
// 语音附件等二进制对象通过统一接口读写，便于单测替换为内存实现
package storage

import (
	"io"
	"strings"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// Put 保存对象，key 为相对路径（可含多级目录），返回对外可访问的 URL
	Put(key string, r io.Reader, size int64) (string, error)
	// Get 读取对象内容
	Get(key string) (io.ReadCloser, error)
	// Exists 判断对象是否存在
	Exists(key string) bool
	// PublicURL 生成对象的对外访问 URL，不校验对象是否存在
	PublicURL(key string) string
}

// cleanKey 规范化对象 key，去除前导斜杠并拒绝路径穿越
func cleanKey(key string) (string, bool) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
