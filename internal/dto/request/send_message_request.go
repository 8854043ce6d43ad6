package request

// SendMessageRequest 发送消息请求
// 文本消息 Content 必填；语音消息 Url/Duration 必填（先走上传接口拿到 Url）
type SendMessageRequest struct {
	SessionId string `json:"sessionId" binding:"required"`
	Kind      int8   `json:"kind" binding:"oneof=0 1 2 3"`
	Content   string `json:"content"`
	Url       string `json:"url"`
	Duration  int    `json:"duration" binding:"min=0"` // 语音时长（秒）
	FileName  string `json:"fileName"`
	FileType  string `json:"fileType"`
	FileSize  int64  `json:"fileSize"`
}
