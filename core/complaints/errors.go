package complaints

import (
	"errors"
	"fmt"
)

const (
	ErrorCodeNotFound          = "complaints.not_found"
	ErrorCodeUnauthorized      = "complaints.unauthorized"
	ErrorCodeInvalidTransition = "complaints.invalid_transition"
	ErrorCodeNoHandlerFound    = "complaints.no_handler_found"
	ErrorCodeValidation        = "complaints.validation"
	ErrorCodeConflict          = "complaints.conflict"

	ErrorKeyNotFound          = "complaints.errors.notFound"
	ErrorKeyUnauthorized      = "complaints.errors.unauthorized"
	ErrorKeyInvalidTransition = "complaints.errors.invalidTransition"
	ErrorKeyNoHandlerFound    = "complaints.errors.noHandlerFound"
	ErrorKeyValidation        = "complaints.errors.validation"
	ErrorKeyConflict          = "complaints.errors.conflict"
)

// DomainError is a failure the caller is expected to show to the user.
// Two domain errors match under errors.Is when their codes are equal.
type DomainError struct {
	Code    string
	I18NKey string
	Message string
}

func NewDomainError(code, i18nKey string) *DomainError {
	return &DomainError{Code: code, I18NKey: i18nKey}
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

func (e *DomainError) withMessage(format string, args ...any) *DomainError {
	out := *e
	out.Message = fmt.Sprintf(format, args...)
	return &out
}

var (
	ErrNotFound          = NewDomainError(ErrorCodeNotFound, ErrorKeyNotFound)
	ErrUnauthorized      = NewDomainError(ErrorCodeUnauthorized, ErrorKeyUnauthorized)
	ErrInvalidTransition = NewDomainError(ErrorCodeInvalidTransition, ErrorKeyInvalidTransition)
	ErrNoHandlerFound    = NewDomainError(ErrorCodeNoHandlerFound, ErrorKeyNoHandlerFound)
	ErrValidation        = NewDomainError(ErrorCodeValidation, ErrorKeyValidation)
	ErrConflict          = NewDomainError(ErrorCodeConflict, ErrorKeyConflict)
)

func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
