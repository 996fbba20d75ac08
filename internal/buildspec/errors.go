package buildspec

import "errors"

var (
	ErrSpecRead       = errors.New("spec unreadable")
	ErrSpecSyntax     = errors.New("spec syntax error")
	ErrSpecInvalid    = errors.New("spec invalid")
	ErrManifestRead   = errors.New("manifest unreadable")
	ErrManifestSyntax = errors.New("manifest syntax error")
)
