package model

import "errors"

// Parse errors. These are wrapped by the codec package's DecodeError
// taxonomy (internal/codec) when they surface off the wire; callers
// parsing user-supplied identifiers (e.g. RPC input) can match on them
// directly with errors.Is.
var (
	ErrInvalidUserID    = errors.New("model: invalid user id")
	ErrInvalidMessageID = errors.New("model: invalid message id")
)
