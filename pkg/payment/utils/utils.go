package utils

import (
	"fmt"
	"time"
)

// GenerateAPIRef 生成发起支付的幂等引用
// 由用户 ID 与毫秒时间戳组成，同一用户重复提交不会产生相同引用
func GenerateAPIRef(userID string, t time.Time) string {
	return fmt.Sprintf("payment_%s_%d", userID, t.UnixMilli())
}
