package state

import "errors"

var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrPropertyType    = errors.New("property value has the wrong type")
	ErrDuplicateName   = errors.New("property already declared")
)
