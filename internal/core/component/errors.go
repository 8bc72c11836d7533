package component

import "errors"

var (
	ErrInvalidArgument    = errors.New("invalid component")
	ErrDuplicateComponent = errors.New("component already registered")
	ErrKeyNotFound        = errors.New("component not found")
	ErrNotInitialized     = errors.New("component not initialized")
	ErrWrongType          = errors.New("component has a different type")
)
