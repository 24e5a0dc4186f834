package apperror

import "errors"

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room is full")
	ErrAlreadyMember        = errors.New("player is already a member of the room")
	ErrIllegalMove          = errors.New("illegal move")
	ErrStaleWrite           = errors.New("room version conflict")
	ErrTransportUnavailable = errors.New("broadcast transport unavailable")
	ErrPersistenceFailure   = errors.New("persistence failure")
)
