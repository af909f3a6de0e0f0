package ecs

import (
	"github.com/phanxgames/stagegl"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
	"github.com/yohamta/donburi/query"
)

// FrameEvent carries the stats of one rendered frame.
type FrameEvent struct {
	Frame int
	Stats stagegl.FrameStats
}

// FrameEventType is the Donburi event type for rendered frames.
var FrameEventType = events.NewEventType[FrameEvent]()

type donburiObserver struct {
	world donburi.World
}

// NewDonburiObserver returns a frame observer that publishes every frame to
// FrameEventType. Events are queued until ProcessEvents is called.
func NewDonburiObserver(world donburi.World) stagegl.FrameObserver {
	return &donburiObserver{world: world}
}

func (o *donburiObserver) FrameRendered(frame int, stats stagegl.FrameStats) {
	FrameEventType.Publish(o.world, FrameEvent{Frame: frame, Stats: stats})
}

// TransformData is the placement an entity imposes on its display node.
type TransformData struct {
	X, Y           float64
	ScaleX, ScaleY float64
	Rotation       float64
	Alpha          float64
	Visible        bool
}

// DefaultTransform returns the identity placement, fully opaque and visible.
func DefaultTransform() TransformData {
	return TransformData{ScaleX: 1, ScaleY: 1, Alpha: 1, Visible: true}
}

// DisplayData links an entity to a node of the display tree.
type DisplayData struct {
	Node *stagegl.Node
}

var (
	Transform = donburi.NewComponentType[TransformData](DefaultTransform())
	Display   = donburi.NewComponentType[DisplayData]()
)

var displayQuery = query.NewQuery(filter.Contains(Transform, Display))

// SyncDisplay copies the Transform of every entity with a Display component
// onto its node. Entities whose node was disposed lose their Display
// component. It returns the number of nodes updated.
func SyncDisplay(world donburi.World) int {
	var stale []*donburi.Entry
	n := 0
	displayQuery.Each(world, func(e *donburi.Entry) {
		node := Display.Get(e).Node
		if node == nil || node.IsDisposed() {
			stale = append(stale, e)
			return
		}
		t := Transform.Get(e)
		node.X, node.Y = t.X, t.Y
		node.ScaleX, node.ScaleY = t.ScaleX, t.ScaleY
		node.Rotation = t.Rotation
		node.Alpha = t.Alpha
		node.Visible = t.Visible
		n++
	})
	for _, e := range stale {
		e.RemoveComponent(Display)
	}
	return n
}

// Spawn creates an entity driving node, with the node's current placement
// as its Transform.
func Spawn(world donburi.World, node *stagegl.Node) donburi.Entity {
	e := world.Create(Transform, Display)
	entry := world.Entry(e)
	Transform.SetValue(entry, TransformData{
		X: node.X, Y: node.Y,
		ScaleX: node.ScaleX, ScaleY: node.ScaleY,
		Rotation: node.Rotation,
		Alpha:    node.Alpha,
		Visible:  node.Visible,
	})
	Display.SetValue(entry, DisplayData{Node: node})
	return e
}
