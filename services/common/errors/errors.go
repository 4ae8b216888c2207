package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error for callers and clients.
type Kind string

const (
	KindBadRequest      Kind = "bad_request"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
	KindConfiguration   Kind = "configuration"
	KindUnknownProduct  Kind = "unknown_product"
	KindInvalidSize     Kind = "invalid_size"
	KindInvalidQuantity Kind = "invalid_quantity"
	KindEmptyCart       Kind = "empty_cart"
	KindMissingField    Kind = "missing_field"
	KindInvalidFormat   Kind = "invalid_format"
	KindTotalMismatch   Kind = "total_mismatch"

	KindRateLimitExceeded Kind = "rate_limit_exceeded"

	KindGatewayCreateFailed Kind = "gateway_create_failed"
	KindGatewayFetchFailed  Kind = "gateway_fetch_failed"
	KindGatewayTimeout      Kind = "gateway_timeout"

	KindSignatureMismatch  Kind = "signature_mismatch"
	KindPaymentNotCaptured Kind = "payment_not_captured"
	KindRecordingFailure   Kind = "recording_failure"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Retryable reports whether the same request may succeed if repeated later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindGatewayTimeout, KindGatewayFetchFailed, KindRateLimitExceeded:
		return true
	}
	return false
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return stderrors.As(err, &appErr) && appErr.Kind == kind
}

// Validation errors. All are client faults and never retried automatically.

func UnknownProduct(productID string) *Error {
	return &Error{Code: http.StatusBadRequest, Kind: KindUnknownProduct, Field: "id",
		Message: fmt.Sprintf("Invalid product ID: %s", productID)}
}

func InvalidSize(size, productName string) *Error {
	return &Error{Code: http.StatusBadRequest, Kind: KindInvalidSize, Field: "size",
		Message: fmt.Sprintf("Invalid size %s for product %s", size, productName)}
}

func InvalidQuantity(quantity int, productName string) *Error {
	return &Error{Code: http.StatusBadRequest, Kind: KindInvalidQuantity, Field: "quantity",
		Message: fmt.Sprintf("Invalid quantity %d for product %s", quantity, productName)}
}

func EmptyCart() *Error {
	return &Error{Code: http.StatusBadRequest, Kind: KindEmptyCart, Field: "lines",
		Message: "Cart is empty or invalid items data"}
}

func MissingField(field string) *Error {
	return &Error{Code: http.StatusBadRequest, Kind: KindMissingField, Field: field,
		Message: fmt.Sprintf("Missing required field: %s", field)}
}

func InvalidFormat(field string) *Error {
	return &Error{Code: http.StatusBadRequest, Kind: KindInvalidFormat, Field: field,
		Message: fmt.Sprintf("Invalid %s format", field)}
}

func TotalMismatch(server, client int64) *Error {
	return &Error{Code: http.StatusBadRequest, Kind: KindTotalMismatch, Field: "total",
		Message: "Total amount mismatch. Please refresh and try again.",
		Err:     fmt.Errorf("server total %d, client total %d", server, client)}
}

// Common error types
var (
	ErrBadRequest         = New(http.StatusBadRequest, KindBadRequest, "Bad request", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, KindUnauthorized, "Unauthorized", nil)
	ErrNotFound           = New(http.StatusNotFound, KindNotFound, "Not found", nil)
	ErrInternalServer     = New(http.StatusInternalServerError, KindInternal, "Internal server error", nil)
	ErrRateLimitExceeded  = New(http.StatusTooManyRequests, KindRateLimitExceeded, "Too many requests. Please try again later.", nil)
	ErrSignatureMismatch  = New(http.StatusBadRequest, KindSignatureMismatch, "Payment signature verification failed", nil)
	ErrPaymentNotCaptured = New(http.StatusBadRequest, KindPaymentNotCaptured, "Payment not captured successfully", nil)
)

// Configuration reports a missing secret or collaborator for an endpoint.
func Configuration(what string) *Error {
	return New(http.StatusServiceUnavailable, KindConfiguration, "Service is not configured: "+what, nil)
}

// Gateway error types. Reads are safe to retry; creates need a fresh receipt.

func GatewayCreateFailed(err error) *Error {
	return New(http.StatusBadGateway, KindGatewayCreateFailed, "Payment gateway error", err)
}

func GatewayFetchFailed(err error) *Error {
	return New(http.StatusBadGateway, KindGatewayFetchFailed, "Error verifying payment with gateway", err)
}

func GatewayTimeout(err error) *Error {
	return New(http.StatusGatewayTimeout, KindGatewayTimeout, "Payment gateway timed out", err)
}

func RecordingFailure(err error) *Error {
	return New(http.StatusInternalServerError, KindRecordingFailure, "Order recording failed", err)
}

// Response is the JSON body written for an error.
func Response(err error) (int, gin.H) {
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError, gin.H{"error": ErrInternalServer.Message, "kind": KindInternal}
	}
	body := gin.H{"error": appErr.Message, "kind": appErr.Kind}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	return appErr.Code, body
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Check if there are any errors
		if len(c.Errors) > 0 && !c.Writer.Written() {
			status, body := Response(c.Errors.Last().Err)
			c.AbortWithStatusJSON(status, body)
		}
	}
}
