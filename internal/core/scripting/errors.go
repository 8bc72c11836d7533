package scripting

import "errors"

var (
	ErrNotScript       = errors.New("asset is not a script")
	ErrNotLoaded       = errors.New("script is not loaded")
	ErrUnknownProperty = errors.New("unknown script property")
)
