package respond

// MessageRespond 消息视图
// 历史记录接口和实时事件共用同一结构，客户端据此做合并
type MessageRespond struct {
	// Uuid 服务端分配的消息 ID，字符串承载避免 JS 精度丢失
	Uuid       string   `json:"uuid"`
	SessionId  string   `json:"sessionId"`
	SendId     string   `json:"sendId"`
	SendName   string   `json:"sendName"`
	SendAvatar string   `json:"sendAvatar"`
	Kind       int8     `json:"kind"`
	Content    string   `json:"content"`
	Url        string   `json:"url"`
	Duration   int      `json:"duration"`
	FileName   string   `json:"fileName"`
	FileType   string   `json:"fileType"`
	FileSize   int64    `json:"fileSize"`
	ReadBy     []string `json:"readBy"`
	CreatedAt  string   `json:"createdAt"` // RFC3339，服务端时钟
	// Expired 语音消息是否已超过 24 小时可播放窗口
	// 服务端按响应时刻计算；客户端渲染时仍会用自己的时钟复核
	Expired bool `json:"expired,omitempty"`
}
