package request

// RefreshTokenRequest 刷新 Access Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}
