// Package seaflow is a plugin orchestration layer for batch and streaming
// data jobs. A job file names source, transform and sink plugins; seaflow
// resolves each one through its registries, prepares it with its option
// block, connects the result tables into a stream graph and runs the graph
// on an in-process engine.
//
// # Architecture
//
// A job passes through three stages, always in this order:
//
//  1. Sources are discovered, prepared and registered as result tables. Each
//     source reports its boundedness and picks a strategy: coordinated
//     (one enumerator for all readers) or parallel (one per reader).
//  2. Transforms resolve their input table, receive the upstream row type
//     and register their own result table.
//  3. Sinks resolve one or more input tables, which must share a row type,
//     and receive that type.
//
// Plugin libraries found under a plugin directory are registered once per
// job, keyed by plugin identifier.
//
// # Quick Start
//
// A job file:
//
//	env:
//	  job.name: orders-backfill
//	  job.mode: BATCH
//	  parallelism: 2
//	source:
//	  - plugin_name: FakeSource
//	    result_table_name: fake
//	    row.num: 100
//	sink:
//	  - plugin_name: Console
//	    source_table_name: fake
//
// Planning and running it from Go:
//
//	job, _ := config.Load("job.yaml")
//	env := engine.NewEnvironment(engine.WithParallelism(job.Env.Parallelism))
//	planner := pipeline.NewPlanner(core.JobContext{JobName: job.Env.JobName, Mode: core.JobModeBatch}, job)
//	err := planner.Execute(ctx, env)
//
// or from the command line:
//
//	seaflow check --config job.yaml
//	seaflow run --config job.yaml
//
// # Key Packages
//
//	internal/pipeline  - Source, transform and sink processors plus the planner
//	internal/engine    - Stream graph builder and local executor
//	pkg/connector      - Plugin contracts, registries and bundled connectors
//	pkg/plugin         - Plugin identifiers, discovery and dependency lookup
//	pkg/config         - Job files in YAML, JSON or HCL
//	pkg/errors         - Typed errors with detail fields
//	pkg/formats/avro   - Avro schemas and records for file connectors
//	pkg/logger         - Structured logging
//	pkg/metrics        - Prometheus collectors
//	pkg/observability  - Tracing
//
// # Connectors
//
// Sources: FakeSource, LocalFile (JSON lines, text, Avro), Jdbc (PostgreSQL,
// MySQL), MongoDB, Kafka, Redis, RabbitMQ.
//
// Transforms: Filter, FieldMapper.
//
// Sinks: Console, LocalFile (JSON lines, text, Avro).
package seaflow
