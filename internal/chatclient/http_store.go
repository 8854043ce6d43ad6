// http_store.go
// 核心职责：MessageStore 的 HTTP 生产实现
// 调用服务端统一信封接口（code/msg/data），非成功码还原为 CodeError
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/pkg/errorx"
)

// HTTPStore 经 HTTP 接口访问消息服务
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPStore 创建存取适配器
// baseURL 形如 "https://chat.example.edu"，不带末尾斜杠
func NewHTTPStore(baseURL, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// envelope 服务端统一响应信封
type envelope struct {
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// LoadMessages 拉取会话全部消息
func (h *HTTPStore) LoadMessages(ctx context.Context, sessionId string) ([]respond.MessageRespond, error) {
	var list []respond.MessageRespond
	q := url.Values{"sessionId": {sessionId}}
	if err := h.get(ctx, "/message/list?"+q.Encode(), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SendMessage 写入一条消息
func (h *HTTPStore) SendMessage(ctx context.Context, req request.SendMessageRequest) (*respond.MessageRespond, error) {
	var rsp respond.MessageRespond
	if err := h.post(ctx, "/message/send", req, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// MarkRead 提交已读回执
func (h *HTTPStore) MarkRead(ctx context.Context, messageId string) (*respond.MessageRespond, error) {
	var rsp respond.MessageRespond
	if err := h.post(ctx, "/message/markRead", request.MarkReadRequest{MessageId: messageId}, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// UploadVoiceNote 以 multipart 上传语音附件
func (h *HTTPStore) UploadVoiceNote(ctx context.Context, sessionId, filename string, blob io.Reader, size int64) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("sessionId", sessionId); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("voice", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, blob); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/message/uploadVoice", &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+h.token)

	var rsp struct {
		Url string `json:"url"`
	}
	if err := h.do(httpReq, &rsp); err != nil {
		return "", err
	}
	return rsp.Url, nil
}

// LastSeen 查询用户最近在线时间
func (h *HTTPStore) LastSeen(ctx context.Context, userId string) (string, error) {
	var rsp respond.LastSeenRespond
	q := url.Values{"userId": {userId}}
	if err := h.get(ctx, "/user/lastSeen?"+q.Encode(), &rsp); err != nil {
		return "", err
	}
	return rsp.LastSeenAt, nil
}

// get 发起 GET 请求并解出 data
func (h *HTTPStore) get(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+h.token)
	return h.do(httpReq, out)
}

// post 发起 JSON POST 请求并解出 data
func (h *HTTPStore) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.token)
	return h.do(httpReq, out)
}

// do 执行请求、校验信封、解出 data
func (h *HTTPStore) do(httpReq *http.Request, out any) error {
	rsp, err := h.client.Do(httpReq)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeStoreUnavailable, "消息服务暂不可用")
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		return errorx.Newf(errorx.CodeStoreUnavailable, "消息服务异常: HTTP %d", rsp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(rsp.Body).Decode(&env); err != nil {
		return errorx.Wrap(err, errorx.CodeStoreUnavailable, "响应解析失败")
	}
	if env.Code != errorx.CodeSuccess {
		// 还原服务端业务错误
		msg := string(env.Msg)
		var plain string
		if err := json.Unmarshal(env.Msg, &plain); err == nil {
			msg = plain
		}
		return errorx.New(env.Code, msg)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errorx.Wrap(err, errorx.CodeStoreUnavailable, "响应解析失败")
	}
	return nil
}

var _ MessageStore = (*HTTPStore)(nil)

// String 打印时隐藏 token
func (h *HTTPStore) String() string {
	return fmt.Sprintf("HTTPStore(%s)", h.baseURL)
}
