package service

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoundNotFound      = errors.New("round not found")
	ErrStrokeNotFound     = errors.New("stroke not found")
	ErrUnauthenticated    = errors.New("missing or invalid session")
	ErrNotMember          = errors.New("user is not a member of this room")
	ErrNotAuthor          = errors.New("only the author can modify this stroke")
	ErrValidation         = errors.New("validation failed")
	ErrRoundAlreadyActive = errors.New("a round is already in progress in this room")
	ErrRoundCompleted     = errors.New("round is already completed")
	ErrStrokeSealed       = errors.New("stroke is already finished")
	ErrInternalServer     = errors.New("internal server error")
)

// validationError 包装 ErrValidation 并携带具体原因
type validationError struct {
	reason string
}

func (e *validationError) Error() string { return ErrValidation.Error() + ": " + e.reason }
func (e *validationError) Unwrap() error { return ErrValidation }

func invalid(reason string) error { return &validationError{reason: reason} }
