package engine

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
)

// NodeKind is the role of a node in the job graph
type NodeKind string

const (
	NodeSource    NodeKind = "source"
	NodeTransform NodeKind = "transform"
	NodeSink      NodeKind = "sink"
)

// DataStream is a handle to a node of the job graph. Source and transform
// streams can be consumed downstream; a sink's stream only identifies the
// node for rollback and listings.
type DataStream struct {
	id           int
	name         string
	kind         NodeKind
	plugin       string
	boundedness  core.Boundedness
	strategy     core.Strategy
	producedType *core.RowType
	parallelism  int
}

// ID is unique within one Environment
func (s *DataStream) ID() int { return s.id }

// Name is the display name, e.g. "Source[0] FakeSource"
func (s *DataStream) Name() string { return s.name }

func (s *DataStream) Kind() NodeKind { return s.kind }

func (s *DataStream) PluginName() string { return s.plugin }

func (s *DataStream) Boundedness() core.Boundedness { return s.boundedness }

// Strategy is only meaningful for source streams
func (s *DataStream) Strategy() core.Strategy { return s.strategy }

func (s *DataStream) ProducedType() *core.RowType { return s.producedType }

func (s *DataStream) Parallelism() int { return s.parallelism }
