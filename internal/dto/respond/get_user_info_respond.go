package respond

// GetUserInfoRespond 用户资料响应
// 聊天界面需要的最小展示属性
type GetUserInfoRespond struct {
	Uuid     string `json:"uuid"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Role     int8   `json:"role"`
}
