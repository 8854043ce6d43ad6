// Package message_kind_enum 定义消息种类枚举
package message_kind_enum

const (
	Text   int8 = iota // 文本消息
	Audio              // 语音消息（24小时可播放窗口）
	File               // 文件消息
	System             // 系统消息
)
