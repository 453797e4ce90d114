package core

import (
	"context"

	"github.com/ajitpratap0/seaflow/pkg/config"
)

// Transform maps rows of one stream into another
type Transform interface {
	PluginName() string
	Prepare(cfg *config.PluginConfig) error
	SetJobContext(jobCtx JobContext)
	// SetInputType is called once with the upstream row type before ProducedType
	SetInputType(t *RowType) error
	ProducedType() *RowType
	// Map returns the mapped row and whether it should be kept
	Map(row Row) (Row, bool, error)
}

// WriterContext identifies one writer of a sink
type WriterContext struct {
	SubtaskIndex int
	Parallelism  int
}

// Writer persists rows
type Writer interface {
	Write(ctx context.Context, row Row) error
	Close() error
}

// Sink is the interface that all sink connectors must implement
type Sink interface {
	PluginName() string
	Prepare(cfg *config.PluginConfig) error
	SetJobContext(jobCtx JobContext)
	SetInputType(t *RowType) error
	CreateWriter(ctx WriterContext) (Writer, error)
}
