package respond

// LastSeenRespond 最近在线时间响应
// LastSeenAt 为空串表示从未上报过心跳
type LastSeenRespond struct {
	UserId     string `json:"userId"`
	LastSeenAt string `json:"lastSeenAt"`
}
