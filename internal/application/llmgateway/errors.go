package llmgateway

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrNoModel 未配置可用的模型
	ErrNoModel = errors.New("llmgateway: no chat model configured")
	// ErrEmptyReply 模型返回空内容
	ErrEmptyReply = errors.New("llmgateway: empty reply")
)

// 降级回复，面向终端用户，不含任何内部错误信息
const (
	OfflineReply = "I can't reach my reasoning service right now, so I can't give a proper answer. Your message is saved; please try again in a few minutes."
	RetryReply   = "Sorry, something went wrong while preparing that answer. Could you please try asking again?"
)

// degradeReason 降级原因，用作指标标签
func degradeReason(err error) string {
	switch {
	case err == nil:
		return "empty"
	case errors.Is(err, ErrNoModel):
		return "no_model"
	case isConnectionError(err):
		return "offline"
	default:
		return "error"
	}
}

// degradedReply 连接类故障给离线提示，其余给重试提示
func degradedReply(err error) string {
	if errors.Is(err, ErrNoModel) || isConnectionError(err) {
		return OfflineReply
	}
	return RetryReply
}

// isConnectionError 判断是否为不可达类错误（拨号失败、DNS、超时、连接重置）
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return true
	case strings.Contains(msg, "connection reset"):
		return true
	case strings.Contains(msg, "no such host"):
		return true
	case strings.Contains(msg, "dial tcp"):
		return true
	case strings.Contains(msg, "i/o timeout"):
		return true
	case strings.Contains(msg, "eof") && strings.Contains(msg, "post"):
		return true
	default:
		return false
	}
}
