package server

import "errors"

var (
	ErrServerClosed         = errors.New("inspector is closed")
	ErrServerNotRunning     = errors.New("inspector is not running")
	ErrServerAlreadyRunning = errors.New("inspector is already running")
	ErrUnauthorized         = errors.New("unauthorized")
)
