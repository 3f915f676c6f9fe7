package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "docmesh"

// Metrics holds all docmesh metric instruments.
type Metrics struct {
	TasksReceived    metric.Int64Counter
	TasksCompleted   metric.Int64Counter
	TasksFailed      metric.Int64Counter
	TasksRejected    metric.Int64Counter
	ToolCalls        metric.Int64Counter
	AgentsDiscovered metric.Int64Gauge
	TaskDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksReceived, err = meter.Int64Counter("docmesh.tasks.received",
		metric.WithDescription("Number of task requests received"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("docmesh.tasks.completed",
		metric.WithDescription("Number of tasks completed"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("docmesh.tasks.failed",
		metric.WithDescription("Number of tasks failed"))
	if err != nil {
		return nil, err
	}

	m.TasksRejected, err = meter.Int64Counter("docmesh.tasks.rejected",
		metric.WithDescription("Number of tasks rejected before execution"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("docmesh.toolcalls",
		metric.WithDescription("Number of tool calls"))
	if err != nil {
		return nil, err
	}

	m.AgentsDiscovered, err = meter.Int64Gauge("docmesh.agents.discovered",
		metric.WithDescription("Agents bound by the last discovery"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("docmesh.task.duration_seconds",
		metric.WithDescription("Task execution duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// MustMetrics is NewMetrics for wiring code and tests. Instrument creation
// only fails on invalid names.
func MustMetrics() *Metrics {
	m, err := NewMetrics()
	if err != nil {
		panic(err)
	}
	return m
}
