package respond

// LoginRespond 登录响应
type LoginRespond struct {
	Uuid         string `json:"uuid"`
	Nickname     string `json:"nickname"`
	Avatar       string `json:"avatar"`
	Role         int8   `json:"role"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
