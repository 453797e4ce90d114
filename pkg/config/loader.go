package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// Format is a job file encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// FormatFromPath picks the encoding from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported job file extension %q", filepath.Ext(path))
	}
}

// Load reads and parses a job file
func Load(path string) (*JobConfig, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read job file").
			WithDetail("path", path)
	}
	return LoadBytes(data, format, path)
}

// LoadBytes parses a job document. name is used in HCL diagnostics.
func LoadBytes(data []byte, format Format, name string) (*JobConfig, error) {
	var (
		doc map[string]interface{}
		err error
	)
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &doc)
	case FormatJSON:
		err = gojson.Unmarshal([]byte(substituteEnvVars(string(data))), &doc)
	case FormatHCL:
		doc, err = decodeHCL(data, name)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported job format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to parse %s job file", format))
	}
	return ParseJob(doc)
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
