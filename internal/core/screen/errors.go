package screen

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDuplicateScreen = errors.New("screen already scheduled")
	ErrNotInitialized  = errors.New("screen is not initialized")
	ErrDisposed        = errors.New("screen is disposed")
	ErrNoDevice        = errors.New("no graphics device for pipeline loading")
)
