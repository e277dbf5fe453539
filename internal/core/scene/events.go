package scene

// Bus event types published by scenes. Every event goes to the scene's own
// topic so multiple scenes can share one bus, and additionally to the
// default topic for process-wide listeners.
const (
	EventUpdate           = "scene.update"
	EventAsyncProgress    = "scene.async_progress"
	EventAsyncFinished    = "scene.async_finished"
	EventNodeAdded        = "scene.node_added"
	EventNodeRemoved      = "scene.node_removed"
	EventComponentAdded   = "scene.component_added"
	EventComponentRemoved = "scene.component_removed"
)

// UpdateEvent is the payload of EventUpdate, sent before component updaters
// run each frame. TimeStep is already scaled by the scene time scale.
type UpdateEvent struct {
	Scene    *Scene
	TimeStep float32
}

// AsyncProgressEvent is the payload of EventAsyncProgress.
type AsyncProgressEvent struct {
	Scene           *Scene
	Progress        float32
	LoadedNodes     int
	TotalNodes      int
	LoadedResources int
	TotalResources  int
}

// AsyncFinishedEvent is the payload of EventAsyncFinished.
type AsyncFinishedEvent struct {
	Scene *Scene
}

// NodeEvent is the payload of EventNodeAdded and EventNodeRemoved.
type NodeEvent struct {
	Scene *Scene
	Node  *Node
}

// ComponentEvent is the payload of EventComponentAdded and
// EventComponentRemoved.
type ComponentEvent struct {
	Scene     *Scene
	Node      *Node
	Component Component
}
