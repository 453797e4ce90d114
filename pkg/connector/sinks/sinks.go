// Package sinks links every built-in sink connector into the binary.
package sinks

import (
	// Import all sink connectors to trigger init() registration
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sinks/console"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sinks/file"
)
