package graphics

import "errors"

var (
	ErrConcurrentSubmit = errors.New("graphics context used concurrently")
	ErrInvalidPipeline  = errors.New("invalid pipeline description")
)
