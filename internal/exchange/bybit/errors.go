package bybit

import (
	"net/http"

	"github.com/vkoshel/tradegate/internal/exchange"
)

// Common Bybit v5 error codes.
const (
	errCodeInvalidAPIKey       = 10003
	errCodeInvalidSignature    = 10004
	errCodeInvalidTimestamp    = 10005
	errCodeRateLimitExceeded   = 10006
	errCodeOrderNotFound       = 110001
	errCodeInvalidOrderType    = 110004
	errCodeInsufficientBalance = 110007
	errCodeSymbolNotFound      = 110009
	errCodeInvalidQuantity     = 110020
	errCodeInvalidPrice        = 110021
	errCodeMarketClosed        = 110043
)

// classifyCode maps a non-zero Bybit retCode onto the adapter error
// taxonomy. Rate limits and server errors are network-kind so the
// retry policy picks them up; everything else is terminal.
func classifyCode(op string, code int, msg string) *exchange.Error {
	var kind exchange.ErrorKind
	switch code {
	case errCodeInvalidAPIKey, errCodeInvalidSignature, errCodeInvalidTimestamp:
		kind = exchange.KindAuth
	case errCodeRateLimitExceeded,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		kind = exchange.KindNetwork
	case errCodeInvalidOrderType, errCodeInvalidQuantity, errCodeInvalidPrice:
		kind = exchange.KindValidation
	default:
		kind = exchange.KindBusiness
	}

	ee := exchange.NewError(kind, op, msg).WithCode(code)
	if code == errCodeOrderNotFound {
		// "Order does not exist or too late to cancel", the order is
		// already in a terminal state on the venue.
		ee.AlreadyClosed = true
	}
	return ee
}

// transportError wraps an SDK-level failure (DNS, TLS, timeouts) as a
// retryable network error.
func transportError(op string, err error) *exchange.Error {
	return exchange.WrapError(exchange.KindNetwork, op, err)
}
