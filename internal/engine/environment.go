// Package engine is seaflow's local stream engine. A planner fills an
// Environment through the GraphBuilder interface; Execute then runs every
// node as goroutines connected by channels.
package engine

import (
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/logger"
)

// SourceSpec describes a source node
type SourceSpec struct {
	Name         string
	Source       core.Source
	Strategy     core.Strategy
	Boundedness  core.Boundedness
	ProducedType *core.RowType
	// Parallelism overrides the environment parallelism when positive
	Parallelism int
}

// TransformSpec describes a transform node
type TransformSpec struct {
	Name         string
	Transform    core.Transform
	Input        *DataStream
	ProducedType *core.RowType
}

// SinkSpec describes a sink node
type SinkSpec struct {
	Name        string
	Sink        core.Sink
	Inputs      []*DataStream
	Parallelism int
}

// GraphBuilder is the surface planners use to construct a job graph
type GraphBuilder interface {
	// RegisterDependencies makes plugin libraries available to the job
	RegisterDependencies(locations []string) error
	// UnregisterDependencies releases locations of an earlier
	// RegisterDependencies call when its planning pass is rolled back
	UnregisterDependencies(locations []string)
	AddSource(spec SourceSpec) (*DataStream, error)
	AddTransform(spec TransformSpec) (*DataStream, error)
	AddSink(spec SinkSpec) (*DataStream, error)
	// Rollback removes nodes added earlier so no partial graph survives a
	// failed planning pass
	Rollback(streams ...*DataStream)
	Parallelism() int
}

type node struct {
	stream    *DataStream
	source    core.Source
	transform core.Transform
	sink      core.Sink
	inputs    []*DataStream
}

// Environment is the in-process GraphBuilder and executor
type Environment struct {
	mu           sync.Mutex
	parallelism  int
	bufferSize   int
	idleInterval time.Duration
	nextID       int
	nodes        []*node
	dependencies map[string]int
	routers      map[int][]*splitRouter
	logger       *zap.Logger
}

// Option configures an Environment
type Option func(*Environment)

// WithParallelism sets the default parallelism of source and sink nodes
func WithParallelism(n int) Option {
	return func(e *Environment) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithBufferSize sets the capacity of the channels between nodes
func WithBufferSize(n int) Option {
	return func(e *Environment) {
		if n > 0 {
			e.bufferSize = n
		}
	}
}

// WithIdleInterval sets how long a reader that emitted nothing waits
// before polling again
func WithIdleInterval(d time.Duration) Option {
	return func(e *Environment) {
		if d > 0 {
			e.idleInterval = d
		}
	}
}

// WithLogger sets the environment logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Environment) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnvironment creates an empty job graph
func NewEnvironment(opts ...Option) *Environment {
	e := &Environment{
		parallelism:  1,
		bufferSize:   1024,
		idleInterval: 50 * time.Millisecond,
		dependencies: make(map[string]int),
		routers:      make(map[int][]*splitRouter),
		logger:       logger.Get().With(zap.String("component", "engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parallelism implements GraphBuilder
func (e *Environment) Parallelism() int {
	return e.parallelism
}

// RegisterDependencies implements GraphBuilder. Plain paths and file://
// URLs must exist; other URL schemes are taken as given. Nothing is
// registered when any location is invalid. Locations are reference
// counted per call, so a location shared by two passes survives the
// rollback of one of them.
func (e *Environment) RegisterDependencies(locations []string) error {
	accepted := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		normalized, err := normalizeLocation(loc)
		if err != nil {
			return err
		}
		accepted[normalized] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for loc := range accepted {
		e.dependencies[loc]++
	}
	e.logger.Debug("dependencies registered", zap.Int("count", len(accepted)), zap.Int("total", len(e.dependencies)))
	return nil
}

// UnregisterDependencies implements GraphBuilder. Unknown locations are ignored.
func (e *Environment) UnregisterDependencies(locations []string) {
	released := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		if canonical, _, err := canonicalLocation(loc); err == nil {
			released[canonical] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for loc := range released {
		n, ok := e.dependencies[loc]
		if !ok {
			continue
		}
		if n <= 1 {
			delete(e.dependencies, loc)
		} else {
			e.dependencies[loc] = n - 1
		}
	}
	e.logger.Debug("dependencies released", zap.Int("count", len(released)), zap.Int("total", len(e.dependencies)))
}

// canonicalLocation maps file:// URLs to their path. local reports whether
// the result names the local filesystem.
func canonicalLocation(loc string) (canonical string, local bool, err error) {
	if strings.TrimSpace(loc) == "" {
		return "", false, errors.New(errors.ErrorTypeDependency, "empty dependency location")
	}
	if !strings.Contains(loc, "://") {
		return loc, true, nil
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrorTypeDependency, "invalid dependency location").
			WithDetail(errors.DetailLocation, loc)
	}
	if u.Scheme != "file" {
		return loc, false, nil
	}
	return u.Path, true, nil
}

func normalizeLocation(loc string) (string, error) {
	path, local, err := canonicalLocation(loc)
	if err != nil || !local {
		return path, err
	}

	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeDependency, "dependency not found").
			WithDetail(errors.DetailLocation, loc)
	}
	return path, nil
}

// Dependencies returns the registered dependency locations, sorted
func (e *Environment) Dependencies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	deps := make([]string, 0, len(e.dependencies))
	for d := range e.dependencies {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// AddSource implements GraphBuilder
func (e *Environment) AddSource(spec SourceSpec) (*DataStream, error) {
	if spec.Source == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "source node needs a source")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stream := e.newStream(spec.Name, NodeSource, spec.Source.PluginName(), spec.Parallelism)
	stream.boundedness = spec.Boundedness
	stream.strategy = spec.Strategy
	stream.producedType = spec.ProducedType
	e.nodes = append(e.nodes, &node{stream: stream, source: spec.Source})

	e.logger.Debug("source added",
		zap.String("name", stream.name),
		zap.String("strategy", spec.Strategy.String()),
		zap.String("boundedness", spec.Boundedness.String()),
		zap.Int("parallelism", stream.parallelism))
	return stream, nil
}

// AddTransform implements GraphBuilder
func (e *Environment) AddTransform(spec TransformSpec) (*DataStream, error) {
	if spec.Transform == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "transform node needs a transform")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkInputs(spec.Name, spec.Input); err != nil {
		return nil, err
	}

	stream := e.newStream(spec.Name, NodeTransform, spec.Transform.PluginName(), 1)
	stream.boundedness = spec.Input.boundedness
	stream.producedType = spec.ProducedType
	e.nodes = append(e.nodes, &node{stream: stream, transform: spec.Transform, inputs: []*DataStream{spec.Input}})

	e.logger.Debug("transform added", zap.String("name", stream.name), zap.String("input", spec.Input.name))
	return stream, nil
}

// AddSink implements GraphBuilder
func (e *Environment) AddSink(spec SinkSpec) (*DataStream, error) {
	if spec.Sink == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "sink node needs a sink")
	}
	if len(spec.Inputs) == 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "%s has no input", spec.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkInputs(spec.Name, spec.Inputs...); err != nil {
		return nil, err
	}

	stream := e.newStream(spec.Name, NodeSink, spec.Sink.PluginName(), spec.Parallelism)
	stream.boundedness = core.Bounded
	for _, in := range spec.Inputs {
		if in.boundedness == core.Unbounded {
			stream.boundedness = core.Unbounded
		}
	}
	e.nodes = append(e.nodes, &node{stream: stream, sink: spec.Sink, inputs: spec.Inputs})

	e.logger.Debug("sink added", zap.String("name", stream.name), zap.Int("inputs", len(spec.Inputs)))
	return stream, nil
}

// Rollback implements GraphBuilder
func (e *Environment) Rollback(streams ...*DataStream) {
	if len(streams) == 0 {
		return
	}
	drop := make(map[int]struct{}, len(streams))
	for _, s := range streams {
		if s != nil {
			drop[s.id] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.nodes[:0]
	for _, n := range e.nodes {
		if _, ok := drop[n.stream.id]; !ok {
			kept = append(kept, n)
		}
	}
	e.nodes = kept
	e.logger.Debug("graph rolled back", zap.Int("removed", len(drop)), zap.Int("remaining", len(e.nodes)))
}

// Graph returns the nodes in insertion order
func (e *Environment) Graph() []*DataStream {
	e.mu.Lock()
	defer e.mu.Unlock()

	streams := make([]*DataStream, len(e.nodes))
	for i, n := range e.nodes {
		streams[i] = n.stream
	}
	return streams
}

func (e *Environment) newStream(name string, kind NodeKind, plugin string, parallelism int) *DataStream {
	if parallelism <= 0 {
		parallelism = e.parallelism
	}
	id := e.nextID
	e.nextID++
	return &DataStream{id: id, name: name, kind: kind, plugin: plugin, parallelism: parallelism}
}

// checkInputs must be called with e.mu held
func (e *Environment) checkInputs(name string, inputs ...*DataStream) error {
	for _, in := range inputs {
		if in == nil {
			return errors.Newf(errors.ErrorTypeValidation, "%s has a nil input", name)
		}
		if in.kind == NodeSink {
			return errors.Newf(errors.ErrorTypeValidation, "%s cannot consume sink %s", name, in.name)
		}
		if e.nodeOf(in) == nil {
			return errors.Newf(errors.ErrorTypeValidation, "%s consumes %s, which is not part of this graph", name, in.name)
		}
	}
	return nil
}

func (e *Environment) nodeOf(s *DataStream) *node {
	for _, n := range e.nodes {
		if n.stream == s {
			return n
		}
	}
	return nil
}
