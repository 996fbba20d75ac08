package image

import "errors"

var (
	ErrImage       = errors.New("image error")
	ErrNotFound    = errors.New("image not found")
	ErrUnreachable = errors.New("registry unreachable")
)
