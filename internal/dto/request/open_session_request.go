package request

// OpenSessionRequest 打开会话请求
// 学生与导师的会话已存在时直接返回，不存在时创建
type OpenSessionRequest struct {
	StudentId    string `json:"studentId" binding:"required"`
	SupervisorId string `json:"supervisorId" binding:"required"`
	ProjectTitle string `json:"projectTitle" binding:"max=120"`
}
