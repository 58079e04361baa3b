// Package observability provides the service's OpenTelemetry metrics.
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod  = "method"
	attrPath    = "path"
	attrStatus  = "status"
	attrStage   = "stage"
	attrSuccess = "success"
)

// knownPaths are recorded verbatim; anything else collapses to "other".
var knownPaths = map[string]bool{
	"/livez":                   true,
	"/readyz":                  true,
	"/v1/submissions":          true,
	"/v1/settings":             true,
	"/v1/settings/credentials": true,
}

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func stageAttr(stage string) attribute.KeyValue {
	if stage == "" {
		stage = "unknown"
	}
	return attribute.String(attrStage, stage)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// normalizePath bounds path cardinality for unrouted requests.
func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}
