package respond

// SessionRespond 会话信息响应
// 参与者双方在会话打开时一次性解析，之后不再变化
type SessionRespond struct {
	Uuid           string `json:"uuid"`
	StudentId      string `json:"studentId"`
	StudentName    string `json:"studentName"`
	SupervisorId   string `json:"supervisorId"`
	SupervisorName string `json:"supervisorName"`
	ProjectTitle   string `json:"projectTitle"`
	LastMessage    string `json:"lastMessage"`
	LastMessageAt  string `json:"lastMessageAt"`
}
