// Package camera provides the camera component: perspective settings that
// are committed through dirty tracking and the view state derived from them.
package camera

import (
	"math"

	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/state"
)

// Property names. Every one of them feeds the projection matrix.
const (
	PropFov         = "fov"
	PropAspectRatio = "aspectRatio"
	PropNearPlane   = "nearPlane"
	PropFarPlane    = "farPlane"
)

var projectionProps = []string{PropFov, PropAspectRatio, PropNearPlane, PropFarPlane}

var (
	_ component.Component      = (*Camera)(nil)
	_ component.Updatable      = (*Camera)(nil)
	_ component.StateCommitter = (*Camera)(nil)
)

// Camera holds view/projection state. Fov, aspect ratio and clip planes are
// staged and only take effect on UpdateState; position, target, up and
// rotation are written immediately.
type Camera struct {
	*component.Base

	fov    *state.Property[float32]
	aspect *state.Property[float32]
	near   *state.Property[float32]
	far    *state.Property[float32]

	position Vec3
	target   Vec3
	up       Vec3
	yaw      float32
	pitch    float32
	roll     float32

	view              Mat4
	projection        Mat4
	viewProjection    Mat4
	inverseProjection Mat4
	frustum           Frustum

	projectionBuilds int
}

// New creates a camera looking from (0,0,5) at the origin with a 45° field of view.
func New(name string, options ...Option) *Camera {
	c := &Camera{
		Base:     component.NewBase(name),
		position: Vec3{0, 0, 5},
		up:       Vec3{0, 1, 0},
	}
	obj := c.State()
	c.fov = state.Declare(obj, PropFov, float32(45*math.Pi/180))
	c.aspect = state.Declare(obj, PropAspectRatio, float32(1))
	c.near = state.Declare(obj, PropNearPlane, float32(0.1))
	c.far = state.Declare(obj, PropFarPlane, float32(100))

	for _, opt := range options {
		opt(c)
	}

	c.rebuildProjection()
	c.rebuildView()
	obj.SetRecompute(c.recompute)
	return c
}

func (c *Camera) recompute(changes state.Changes) {
	if changes.Has(projectionProps...) {
		c.rebuildProjection()
	}
	c.rebuildView()
}

func (c *Camera) rebuildProjection() {
	c.projection = Perspective(c.fov.Get(), c.aspect.Get(), c.near.Get(), c.far.Get())
	if inv, ok := c.projection.Inverse(); ok {
		c.inverseProjection = inv
	}
	c.projectionBuilds++
}

func (c *Camera) rebuildView() {
	c.view = Rotation(c.yaw, c.pitch, c.roll).Mul(LookAt(c.position, c.target, c.up))
	c.viewProjection = c.projection.Mul(c.view)
	c.frustum = FrustumFrom(c.viewProjection)
}

// Update marks the view stale so that the next commit rebuilds it from the
// current position, target and rotation.
func (c *Camera) Update(_ component.Frame) error {
	c.State().Touch()
	return nil
}

func (c *Camera) Fov() float32    { return c.fov.Get() }
func (c *Camera) Aspect() float32 { return c.aspect.Get() }
func (c *Camera) Near() float32   { return c.near.Get() }
func (c *Camera) Far() float32    { return c.far.Get() }

// SetFov stages a vertical field of view in radians.
func (c *Camera) SetFov(fov float32)       { c.fov.Set(fov) }
func (c *Camera) SetAspect(aspect float32) { c.aspect.Set(aspect) }
func (c *Camera) SetNear(near float32)     { c.near.Set(near) }
func (c *Camera) SetFar(far float32)       { c.far.Set(far) }

func (c *Camera) Position() Vec3 { return c.position }
func (c *Camera) Target() Vec3   { return c.target }
func (c *Camera) Up() Vec3       { return c.up }

func (c *Camera) SetPosition(p Vec3) { c.position = p }
func (c *Camera) SetTarget(t Vec3)   { c.target = t }
func (c *Camera) SetUp(u Vec3)       { c.up = u }

// SetRotation sets a view-space yaw/pitch/roll in radians.
func (c *Camera) SetRotation(yaw, pitch, roll float32) {
	c.yaw, c.pitch, c.roll = yaw, pitch, roll
}

func (c *Camera) Rotation() (yaw, pitch, roll float32) { return c.yaw, c.pitch, c.roll }

func (c *Camera) ViewMatrix() Mat4              { return c.view }
func (c *Camera) ProjectionMatrix() Mat4        { return c.projection }
func (c *Camera) ViewProjectionMatrix() Mat4    { return c.viewProjection }
func (c *Camera) InverseProjectionMatrix() Mat4 { return c.inverseProjection }
func (c *Camera) Frustum() Frustum              { return c.frustum }

// ProjectionBuilds counts how many times the projection matrix was computed.
func (c *Camera) ProjectionBuilds() int { return c.projectionBuilds }
