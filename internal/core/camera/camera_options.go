package camera

// Option configures a Camera at construction. Perspective options write the
// committed value directly.
type Option func(*Camera)

func WithFov(fov float32) Option {
	return func(c *Camera) { c.fov.SetImmediate(fov) }
}

func WithAspect(aspect float32) Option {
	return func(c *Camera) { c.aspect.SetImmediate(aspect) }
}

func WithClip(near, far float32) Option {
	return func(c *Camera) {
		c.near.SetImmediate(near)
		c.far.SetImmediate(far)
	}
}

func WithPosition(p Vec3) Option {
	return func(c *Camera) { c.position = p }
}

func WithTarget(t Vec3) Option {
	return func(c *Camera) { c.target = t }
}

func WithUp(u Vec3) Option {
	return func(c *Camera) { c.up = u }
}
