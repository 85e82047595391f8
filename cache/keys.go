package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Key 生成确定性的缓存 key：op + userID + 规整后的参数。
// 相同参数集合（无论 map 遍历顺序）总是得到相同 key。
func Key(op, userID string, params map[string]any) string {
	if len(params) == 0 {
		return fmt.Sprintf("%s:%s", op, userID)
	}

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		fmt.Fprintf(&b, "%s=%v;", k, params[k])
	}
	sum := md5.Sum([]byte(b.String()))
	return fmt.Sprintf("%s:%s:%s", op, userID, hex.EncodeToString(sum[:]))
}
