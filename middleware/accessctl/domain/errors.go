package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuotaExceeded: recuperável pelo cliente depois de ResetAt.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrAccessSuspended: recuperável só depois de ExpiresAt, ou nunca se permanente.
	ErrAccessSuspended = errors.New("access suspended")
	// ErrInvalidAdminAction: erro do chamador (400), sem retentativa.
	ErrInvalidAdminAction = errors.New("invalid admin action")
	// ErrUnauthorized: chamador sem sessão ou sem papel de admin (401).
	ErrUnauthorized = errors.New("unauthorized")

	ErrAccountNotFound = errors.New("account not found")
	// ErrForbiddenTarget: alvo que nunca pode ser banido (outro admin).
	ErrForbiddenTarget = errors.New("forbidden target")
)

type QuotaExceededError struct {
	Key     QuotaKey
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s until %s", e.Key, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

type SuspendedError struct {
	Reason    *string
	ExpiresAt *time.Time
}

func (e *SuspendedError) Error() string {
	if e.ExpiresAt == nil {
		return "access suspended permanently"
	}
	return "access suspended until " + e.ExpiresAt.UTC().Format(time.RFC3339)
}

func (e *SuspendedError) Unwrap() error { return ErrAccessSuspended }

// AdminActionError carrega a mensagem exibida ao admin junto com ErrInvalidAdminAction.
type AdminActionError struct {
	Msg string
}

func (e *AdminActionError) Error() string { return e.Msg }

func (e *AdminActionError) Unwrap() error { return ErrInvalidAdminAction }

func InvalidAdminAction(format string, args ...any) error {
	return &AdminActionError{Msg: fmt.Sprintf(format, args...)}
}
