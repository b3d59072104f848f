package board

import (
	"github.com/dyluth/democrite/pkg/blackboard"
)

// ExecutionContext is the scratch space of one command batch. Nested contexts share the
// event queue of their root, so events raised anywhere in a cascade are consumed once.
type ExecutionContext struct {
	parent *ExecutionContext
	depth  int
	events []blackboard.Event
}

// NewExecutionContext returns a root context when parent is nil and a nested one
// otherwise.
func NewExecutionContext(parent *ExecutionContext) *ExecutionContext {
	if parent == nil {
		return &ExecutionContext{}
	}
	return &ExecutionContext{parent: parent, depth: parent.depth + 1}
}

// Depth is 0 for a root context.
func (c *ExecutionContext) Depth() int {
	return c.depth
}

// Parent returns the enclosing context, or nil.
func (c *ExecutionContext) Parent() *ExecutionContext {
	return c.parent
}

// Enqueue records an event.
func (c *ExecutionContext) Enqueue(events ...blackboard.Event) {
	root := c.root()
	root.events = append(root.events, events...)
}

// ConsumeEvents returns the pending events and clears the queue.
func (c *ExecutionContext) ConsumeEvents() []blackboard.Event {
	root := c.root()
	events := root.events
	root.events = nil
	return events
}

func (c *ExecutionContext) root() *ExecutionContext {
	for c.parent != nil {
		c = c.parent
	}
	return c
}
