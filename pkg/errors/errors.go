package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNilTransaction           = errors.New("transaction is nil")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrBillAlreadyAttached      = errors.New("external bill already attached")
	ErrTenantNotFound           = errors.New("tenant not found")
	ErrNilTenant                = errors.New("tenant is nil")
	ErrInvalidSignature         = errors.New("unauthorized")
	ErrInvalidOutcome           = errors.New("unknown webhook outcome")
	ErrGatewayUnavailable       = errors.New("gateway unreachable")
	ErrGatewayRejected          = errors.New("gateway rejected bill")
	ErrGatewayUnauthorized      = errors.New("gateway authentication failed")
	ErrStoreUnavailable         = errors.New("store unavailable")
	ErrInvalidCredentials       = fmt.Errorf("invalid credentials")
	ErrInternal                 = fmt.Errorf("internal error")
	ErrInvalidInput             = fmt.Errorf("ErrInvalidInput")
)

// IsGateway reports whether err is any of the outbound gateway failure kinds.
func IsGateway(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrGatewayRejected) ||
		errors.Is(err, ErrGatewayUnauthorized)
}
