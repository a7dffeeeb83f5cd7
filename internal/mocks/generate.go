// Package mocks provides gomock implementations of the core ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	queue := mocks.NewMockJobQueue(ctrl)
//	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Dispatcher collaborators: Put.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=object_store_mock.go github.com/target/detectq/internal/core ObjectStore

// Enqueue, ApproximateDepth
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_queue_mock.go github.com/target/detectq/internal/core JobQueue

// Get, Put
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=result_store_mock.go github.com/target/detectq/internal/core ResultStore

// MarkAccepted, IsAccepted
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=acceptance_store_mock.go github.com/target/detectq/internal/core AcceptanceStore

// Backlog monitor collaborators: DesiredSize, Publish.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=fleet_size_source_mock.go github.com/target/detectq/internal/core FleetSizeSource
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=metrics_sink_mock.go github.com/target/detectq/internal/core MetricsSink
