// Package api carries the OpenAPI description of the HTTP surface.
package api

import _ "embed"

// OpenAPI is served at /swagger/spec.
//
//go:embed openapi.yaml
var OpenAPI []byte
