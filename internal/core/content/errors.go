package content

import "errors"

var (
	ErrResourceNotFound     = errors.New("resource not found")
	ErrResourceNotSupported = errors.New("resource type not supported")
	ErrDecoderExists        = errors.New("decoder already registered for extension")
)
