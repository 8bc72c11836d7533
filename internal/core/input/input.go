// Package input defines the read-only poll surface handed to components once
// per frame. Device polling itself lives outside the engine.
package input

type Key uint16

type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

// State is a snapshot of input for one frame.
type State interface {
	IsKeyHeld(k Key) bool
	IsButtonPressed(b Button) bool
	Pointer() (x, y float64)
	PointerDelta() (dx, dy float64)
}

// Source produces the snapshot for the next frame.
type Source interface {
	Poll() State
}

var _ State = Snapshot{}

// Snapshot is a value State. The zero value has nothing held and the pointer at the origin.
type Snapshot struct {
	Keys    map[Key]bool
	Buttons map[Button]bool
	X, Y    float64
	DX, DY  float64
}

func (s Snapshot) IsKeyHeld(k Key) bool          { return s.Keys[k] }
func (s Snapshot) IsButtonPressed(b Button) bool { return s.Buttons[b] }
func (s Snapshot) Pointer() (x, y float64)       { return s.X, s.Y }
func (s Snapshot) PointerDelta() (dx, dy float64) {
	return s.DX, s.DY
}

// SourceFunc adapts a function to Source.
type SourceFunc func() State

func (f SourceFunc) Poll() State { return f() }

// Static always returns the same snapshot.
func Static(s Snapshot) Source {
	return SourceFunc(func() State { return s })
}
