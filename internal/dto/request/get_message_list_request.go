package request

// GetMessageListRequest 获取会话消息记录请求
type GetMessageListRequest struct {
	SessionId string `form:"sessionId" binding:"required"`
}
