// Package voicenote 提供语音消息生命周期的纯函数
// 过期判定只依赖 (createdAt, now) 两个入参，便于对 24 小时边界做确定性测试
package voicenote

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"fyp_chat_server/pkg/constants"
)

// TTL 语音消息的可播放窗口
const TTL = constants.VOICE_NOTE_TTL_HOURS * time.Hour

// Expired 判断语音消息是否超过可播放窗口
// 满 24 小时即过期；过期是展示/访问策略，底层数据行和存储对象不要求删除
func Expired(createdAt, now time.Time) bool {
	return now.Sub(createdAt) >= TTL
}

// BuildKey 生成语音附件在对象存储中的路径
// 形如 <sessionId>/<senderId>/<unix秒>.<ext>
func BuildKey(sessionId, senderId string, at time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s/%s/%d.%s", sessionId, senderId, at.Unix(), ext)
}

// ParseKeyTime 从存储路径中还原录制时间
// 静态资源网关用它对直接的 URL 访问做过期拦截，无需回查数据库
func ParseKeyTime(key string) (time.Time, error) {
	base := path.Base(key)
	stamp := strings.TrimSuffix(base, path.Ext(base))
	sec, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("voice note key %q: %w", key, err)
	}
	return time.Unix(sec, 0), nil
}
