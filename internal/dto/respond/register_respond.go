package respond

// RegisterRespond 注册响应
type RegisterRespond struct {
	Uuid     string `json:"uuid"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Role     int8   `json:"role"`
}
