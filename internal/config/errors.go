package config

import "errors"

var ErrUnsupportedFormat = errors.New("unsupported config format")
