package controller

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dyluth/democrite/pkg/blackboard"
)

// Handler lazily resolves one controller for a board and initializes it exactly once.
// A failed resolution is not cached; the next call retries.
type Handler struct {
	factory *Factory
	board   blackboard.BoardID
	binding blackboard.ControllerBinding

	mu   sync.Mutex
	ctrl Controller
}

// Binding returns the binding the handler was built for.
func (h *Handler) Binding() blackboard.ControllerBinding {
	return h.binding
}

// Key returns the deduplication key of the handler's binding.
func (h *Handler) Key() string {
	return BindingKey(h.binding)
}

// Controller resolves the controller, creating and initializing it on first use.
func (h *Handler) Controller(ctx context.Context) (Controller, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctrl != nil {
		return h.ctrl, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctrl, err := h.factory.Create(h.board, h.binding)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Initialize(ctx, h.board, h.binding.Options); err != nil {
		return nil, fmt.Errorf("failed to initialize controller %s: %w", h.binding.Name, err)
	}

	log.Printf("[Controller] Initialized %s controller '%s' for board %s", h.binding.Kind, h.binding.Name, h.board)
	h.ctrl = ctrl
	return ctrl, nil
}

// Get resolves the handler's controller as T. It reports false when the handler is nil
// or the controller does not implement T.
func Get[T any](ctx context.Context, h *Handler) (T, bool, error) {
	var zero T
	if h == nil {
		return zero, false, nil
	}
	ctrl, err := h.Controller(ctx)
	if err != nil {
		return zero, false, err
	}
	typed, ok := ctrl.(T)
	return typed, ok, nil
}
