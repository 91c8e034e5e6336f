package evm

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorAction tells the client what to do after a failed call.
type ErrorAction int

const (
	ActionRetry    ErrorAction = iota // Transient failure, the same endpoint may succeed later
	ActionFailover                    // Endpoint is throttling or refusing us, move to the next one
	ActionFatal                       // Malformed request, no endpoint will accept it
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrAllEndpointsFailed is returned when every configured endpoint failed.
var ErrAllEndpointsFailed = errors.New("all rpc endpoints failed")

// ClassifyError determines the action for an RPC error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case -32700, -32600, -32601, -32602:
			return ActionFatal
		}
	}
	msg := strings.ToLower(err.Error())

	// JSON-RPC protocol errors
	if strings.Contains(msg, "-32700") || // Parse error
		strings.Contains(msg, "-32600") || // Invalid Request
		strings.Contains(msg, "-32601") || // Method not found
		strings.Contains(msg, "-32602") || // Invalid params
		strings.Contains(msg, "execution reverted") {
		return ActionFatal
	}

	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "request count exceeded") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "unauthorized") {
		return ActionFailover
	}

	return ActionRetry
}

// IsRangeTooLarge reports provider errors caused by a log query spanning
// too many blocks or returning too many results.
func IsRangeTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "block range") ||
		strings.Contains(msg, "query returned more than") ||
		strings.Contains(msg, "response size exceeded") ||
		strings.Contains(msg, "too many results") ||
		strings.Contains(msg, "-32005")
}
