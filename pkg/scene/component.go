package scene

import (
	"sync/atomic"

	"github.com/ajitpratap0/scenepool/pkg/lifecycle"
)

// DefaultPayloadSize is the buffer capacity allocated for every component.
// It stands in for the textures, meshes and scripts a real component carries.
const DefaultPayloadSize = 4096

var nextID atomic.Uint64

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Component is a heavyweight scene object worth recycling. Components must
// not be copied once created.
type Component struct {
	lifecycle.Hooks

	ID       uint64
	Name     string
	Position Vec2
	Velocity Vec2
	// Age counts the ticks since the component was spawned.
	Age     int
	Payload []byte
}

// NewComponent allocates a new component with a fresh id.
func NewComponent() *Component {
	return &Component{
		ID:      nextID.Add(1),
		Payload: make([]byte, 0, DefaultPayloadSize),
	}
}

// Reset clears per-spawn state. The id, lifecycle hooks and buffer capacity
// are kept.
func (c *Component) Reset() {
	c.Name = ""
	c.Position = Vec2{}
	c.Velocity = Vec2{}
	c.Age = 0
	c.Payload = c.Payload[:0]
}

// Advance moves the component by its velocity and ages it by one tick.
func (c *Component) Advance() {
	c.Position = c.Position.Add(c.Velocity)
	c.Age++
}
