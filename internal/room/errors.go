package room

import "errors"

var (
	ErrRoomFull      = errors.New("room is full")
	ErrRoomClosed    = errors.New("room is closed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrAlreadyJoined = errors.New("client already joined")
	ErrInboxFull     = errors.New("room inbox is full")
	ErrCommandFailed = errors.New("room command failed")
)
