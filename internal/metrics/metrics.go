// Package metrics holds the Prometheus collectors and the OpenTelemetry tracer shared by
// the board runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// Tracer is used for spans around command batches and storage commands.
var Tracer = otel.Tracer("democrite.board")

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	// CommandsTotal counts executed commands by "Action.Kind" and result.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "democrite_board_commands_total",
		Help: "Commands executed by boards",
	}, []string{"command", "result"})

	// BatchDuration observes the duration of top level command batches.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "democrite_board_batch_duration_seconds",
		Help:    "Duration of command batches including cascades",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	// CascadeDepth observes how deep controller cascades nest.
	CascadeDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "democrite_board_cascade_depth",
		Help:    "Nesting depth reached by controller cascades",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
	})

	// PushIssues counts push issues by kind.
	PushIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "democrite_board_push_issues_total",
		Help: "Issues detected before a record write",
	}, []string{"kind"})

	// StateSaves counts board state saves by result.
	StateSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "democrite_board_state_saves_total",
		Help: "Board state persistence attempts",
	}, []string{"result"})

	// ActiveBoards is the number of boards activated in this host.
	ActiveBoards = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "democrite_active_boards",
		Help: "Boards currently activated in this host",
	})

	// SequenceTriggers counts fired sequences by result.
	SequenceTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "democrite_sequence_triggers_total",
		Help: "Sequences fired by boards",
	}, []string{"result"})

	// SignalsDispatched counts signals received from the signal channel by result.
	SignalsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "democrite_signals_dispatched_total",
		Help: "Signals delivered to boards by the host",
	}, []string{"result"})
)
