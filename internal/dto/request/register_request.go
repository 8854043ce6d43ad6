package request

// RegisterRequest 注册请求
type RegisterRequest struct {
	Nickname string `json:"nickname" binding:"required,min=2,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
	Role     int8   `json:"role" binding:"oneof=0 1"` // 0=学生，1=导师
}
