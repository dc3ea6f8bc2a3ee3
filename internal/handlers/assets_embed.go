package handlers

import _ "embed"

// OpenAPISpec is the API description served at /openapi.yaml and used for request validation
//
//go:embed openapi.yaml
var OpenAPISpec []byte
