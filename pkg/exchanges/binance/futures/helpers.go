package futures

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mapStatus(s string) common.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	case "EXPIRED":
		return common.StatusExpired
	default:
		return common.StatusUnknown
	}
}

// apiError maps a non-2xx response into a classified venue error. Binance
// error bodies carry {"code": -1003, "msg": "..."}.
func apiError(op string, status int, body []byte) error {
	var raw struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(body, &raw)
	msg := raw.Msg
	if msg == "" {
		msg = string(body)
	}
	return &common.Error{
		Op:        op,
		Code:      raw.Code,
		Message:   msg,
		Temporary: isTransientCode(status, raw.Code),
	}
}

// isTransientCode flags failures Binance itself treats as retryable:
// server-side 5xx, and the documented transient codes (-1001 internal
// error, -1003 rate limit, -1007 backend timeout, -1008 overloaded,
// -1021 timestamp outside recvWindow).
func isTransientCode(status, code int) bool {
	if status >= 500 {
		return true
	}
	switch code {
	case -1001, -1003, -1007, -1008, -1021:
		return true
	}
	return false
}
