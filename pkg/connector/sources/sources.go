// Package sources links every built-in source connector into the binary.
// Importing it for side effects registers them with the connector registry.
package sources

import (
	// Import all source connectors to trigger init() registration
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sources/fake"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sources/file"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sources/jdbc"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sources/kafka"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sources/mongodb"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sources/rabbitmq"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sources/redis"
)
