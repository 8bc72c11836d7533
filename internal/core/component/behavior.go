package component

var _ Updatable = (*Behavior)(nil)

// Behavior is a passive component whose update step is a plain function.
type Behavior struct {
	*Base
	update func(Frame) error
}

func NewBehavior(name string, update func(Frame) error) *Behavior {
	return &Behavior{Base: NewBase(name), update: update}
}

func (b *Behavior) Update(frame Frame) error {
	if b.update == nil {
		return nil
	}
	return b.update(frame)
}
