package chat

import "errors"

var (
	ErrProgressNotFound = errors.New("import progress row not found")
	ErrClientNotFound   = errors.New("client not found")
)
