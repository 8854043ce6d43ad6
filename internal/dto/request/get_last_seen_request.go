package request

// GetLastSeenRequest 查询指定用户最近在线时间请求
type GetLastSeenRequest struct {
	UserId string `form:"userId" binding:"required"`
}
