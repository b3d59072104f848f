package node

import (
	"context"
	"fmt"
	"log"

	"github.com/dyluth/democrite/internal/metrics"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// ServeSignals delivers the signals published on the namespace channel to boards until
// ctx is done. It needs the Redis backend.
func (n *Node) ServeSignals(ctx context.Context) error {
	if n.Client == nil {
		return fmt.Errorf("signal dispatch requires the redis backend")
	}

	sub, err := n.Client.SubscribeSignals(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to signals: %w", err)
	}
	defer sub.Close()
	log.Printf("[Node] Listening for signals in namespace %s", n.Config.Namespace)

	events, errs := sub.Events(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			n.dispatchSignal(ctx, msg)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[Node] Skipped signal: %v", err)
		}
	}
}

// dispatchSignal sends a targeted signal to its board, built from the registry if needed,
// and a broadcast to every active board. Failures are only logged.
func (n *Node) dispatchSignal(ctx context.Context, msg *blackboard.SignalMessage) {
	var err error
	if msg.BoardUID == uuid.Nil {
		err = n.Host.DispatchSignal(ctx, msg)
	} else if p, resolveErr := n.Facade.BoardByUID(ctx, msg.BoardUID); resolveErr != nil {
		err = resolveErr
	} else {
		err = p.Signal(ctx, msg)
	}

	if err != nil {
		metrics.SignalsDispatched.WithLabelValues(metrics.ResultError).Inc()
		log.Printf("[Node] Failed to dispatch signal %s (board=%s): %v", msg.Signal, msg.BoardUID, err)
		return
	}
	metrics.SignalsDispatched.WithLabelValues(metrics.ResultOK).Inc()
}
