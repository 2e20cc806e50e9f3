// Package api holds the OpenAPI description of the HTTP API, served by the
// Swagger UI under /api/docs.
package api

import _ "embed"

// OpenAPI is the document served at /api/docs/doc.json.
//
//go:embed openapi.json
var OpenAPI []byte
