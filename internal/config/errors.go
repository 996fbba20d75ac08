package config

import "errors"

var (
	ErrConfigRead      = errors.New("cannot read config file")
	ErrConfigSyntax    = errors.New("config file is not valid JSON")
	ErrDuplicateConfig = errors.New("duplicate config files")
)
