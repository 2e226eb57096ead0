package chat

import "errors"

var (
	ErrProgressNotFound = errors.New("import progress not found")
	ErrGetProgress      = errors.New("failed to get import progress")
)
