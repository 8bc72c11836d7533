package service

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid service")
	ErrDuplicateService = errors.New("service of this type already registered")
	ErrNotFound         = errors.New("service not found")
)
