package payment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("payment not found")
	ErrStorageUnavailable = errors.New("payment ledger storage unavailable")
)

// Gateway is the payments backend as seen by the reconciler.
// CheckStatus hides the transport: polling today, push could answer the same question.
type Gateway interface {
	CreatePayment(ctx context.Context, np NewPayment) (Payment, error)
	CheckStatus(ctx context.Context, code TransactionCode) (paid bool, err error)
	ExpirePayment(ctx context.Context, code TransactionCode) error
}

// GatewayError is a non-2xx answer from the payments backend.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (err *GatewayError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("payments backend: %d %s", err.StatusCode, http.StatusText(err.StatusCode))
	}
	return fmt.Sprintf("payments backend: %d %s", err.StatusCode, err.Message)
}

// IsClientError reports whether the backend rejected the request itself (4xx).
// Those errors are surfaced to the student verbatim.
func (err *GatewayError) IsClientError() bool {
	return err.StatusCode >= http.StatusBadRequest && err.StatusCode < http.StatusInternalServerError
}
