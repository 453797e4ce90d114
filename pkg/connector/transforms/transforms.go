// Package transforms links every built-in transform into the binary.
package transforms

import (
	// Import all transforms to trigger init() registration
	_ "github.com/ajitpratap0/seaflow/pkg/connector/transforms/fieldmapper"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/transforms/filter"
)
