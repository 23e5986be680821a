package config

import "errors"

var (
	ErrParsingConfig   = errors.New("config.errors.parsing_failed")
	ErrConfigNotLoaded = errors.New("config.errors.not_loaded")
	ErrNilPointer      = errors.New("config.errors.nil_pointer")
)
