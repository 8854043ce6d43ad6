package request

// MarkReadRequest 已读回执请求
// MessageId 使用字符串承载雪花 ID，避免 JavaScript 精度丢失
type MarkReadRequest struct {
	MessageId string `json:"messageId" binding:"required"`
}
