// Package content resolves asset names to opaque resource handles.
package content

import (
	"context"

	"github.com/google/uuid"
)

// Kind describes how a handle's Data should be interpreted.
type Kind string

const (
	KindBytes  Kind = "bytes"
	KindText   Kind = "text"
	KindScript Kind = "script"
	KindData   Kind = "data"
)

// Handle is an opaque, loaded resource.
type Handle struct {
	ID   uuid.UUID
	Name string
	Kind Kind
	Data any
}

// Text returns Data as a string for text and script handles.
func (h *Handle) Text() (string, bool) {
	s, ok := h.Data.(string)
	return s, ok
}

// Loader is the contract components use during content loading.
type Loader interface {
	// Load returns the handle for name. It fails with ErrResourceNotFound when
	// the asset is absent and ErrResourceNotSupported when its extension has no decoder.
	Load(ctx context.Context, name string) (*Handle, error)
	// Unload drops a cached handle. Unknown names are ignored.
	Unload(name string)
}
