package middleware

import (
	"encoding/json"
	"fmt"
	"strings"

	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// SchemaLoader compiles the component schemas of an OpenAPI document and answers
// which request schema an endpoint documents.
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
	paths   map[string]interface{}
}

// NewSchemaLoader creates a new schema loader
func NewSchemaLoader() *SchemaLoader {
	return &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema),
		paths:   make(map[string]interface{}),
	}
}

// LoadOpenAPI parses a YAML OpenAPI document and compiles every schema under
// components/schemas. A schema that fails to compile fails the whole load.
func (sl *SchemaLoader) LoadOpenAPI(data []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return contextutils.WrapError(err, "failed to parse OpenAPI document as YAML")
	}

	if paths, ok := doc["paths"].(map[string]interface{}); ok {
		sl.paths = paths
	}

	components, ok := doc["components"].(map[string]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no components section found in OpenAPI document")
	}
	schemas, ok := components["schemas"].(map[string]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no schemas section found in OpenAPI document")
	}

	jsonCompatibleSchemas := make(map[string]interface{}, len(schemas))
	for name, schemaData := range schemas {
		jsonCompatibleSchemas[name] = convertToJSONCompatible(schemaData)
	}

	for name := range jsonCompatibleSchemas {
		// Each schema is compiled inside the full components tree so $ref resolves
		completeSchemaDoc := map[string]interface{}{
			"$schema": "http://json-schema.org/draft-07/schema#",
			"components": map[string]interface{}{
				"schemas": jsonCompatibleSchemas,
			},
			"$ref": "#/components/schemas/" + name,
		}

		schemaBytes, err := json.Marshal(completeSchemaDoc)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to marshal schema %s", name)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to compile schema %s", name)
		}
		sl.schemas[name] = schema
	}

	return nil
}

// convertToJSONCompatible rewrites OpenAPI's nullable keyword into JSON Schema unions
func convertToJSONCompatible(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		nullable := false
		for key, val := range v {
			if key == "nullable" {
				if b, ok := val.(bool); ok {
					nullable = b
					continue
				}
			}
			result[key] = convertToJSONCompatible(val)
		}

		if nullable {
			if ref, hasRef := result["$ref"].(string); hasRef {
				result["oneOf"] = []interface{}{
					map[string]interface{}{"$ref": ref},
					map[string]interface{}{"type": "null"},
				}
				delete(result, "$ref")
			} else if typeVal, hasType := result["type"].(string); hasType {
				result["type"] = []interface{}{typeVal, "null"}
			}
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = convertToJSONCompatible(val)
		}
		return result
	default:
		return data
	}
}

// HasSchema reports whether a component schema with the given name was loaded
func (sl *SchemaLoader) HasSchema(name string) bool {
	_, ok := sl.schemas[name]
	return ok
}

// ValidateData validates data against a schema
func (sl *SchemaLoader) ValidateData(data interface{}, schemaName string) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal data")
	}
	return sl.ValidateJSON(jsonData, schemaName)
}

// ValidateJSON validates a JSON document against a schema. Violations are reported as
// ErrValidationFailed listing every failing field.
func (sl *SchemaLoader) ValidateJSON(document []byte, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "document is not valid JSON: %v", err)
	}

	if !result.Valid() {
		validationErrors := make([]string, 0, len(result.Errors()))
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "schema validation failed: %s", strings.Join(validationErrors, "; "))
	}

	return nil
}

// operation returns the OpenAPI operation object for a path template and method
func (sl *SchemaLoader) operation(path, method string) (map[string]interface{}, bool) {
	pathInfo, ok := sl.paths[path]
	if !ok {
		for documented := range sl.paths {
			if pathMatchesPattern(path, documented) {
				pathInfo = sl.paths[documented]
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, false
	}
	pathMap, ok := pathInfo.(map[string]interface{})
	if !ok {
		return nil, false
	}
	op, ok := pathMap[strings.ToLower(method)].(map[string]interface{})
	return op, ok
}

// IsEndpointDocumented checks if an endpoint is documented in the OpenAPI document
func (sl *SchemaLoader) IsEndpointDocumented(path, method string) bool {
	_, ok := sl.operation(path, method)
	return ok
}

// RequestSchema returns the component schema name of an endpoint's JSON request body,
// or "" when the endpoint documents none.
func (sl *SchemaLoader) RequestSchema(path, method string) string {
	op, ok := sl.operation(path, method)
	if !ok {
		return ""
	}
	schema := lookup(op, "requestBody", "content", "application/json", "schema")
	if schema == nil {
		return ""
	}
	ref, _ := schema["$ref"].(string)
	return strings.TrimPrefix(ref, "#/components/schemas/")
}

func lookup(m map[string]interface{}, keys ...string) map[string]interface{} {
	for _, key := range keys {
		next, ok := m[key].(map[string]interface{})
		if !ok {
			return nil
		}
		m = next
	}
	return m
}

// pathMatchesPattern checks if a request path matches a path template. Both gin's
// ":id" and OpenAPI's "{id}" parameters match any segment.
func pathMatchesPattern(requestPath, documentedPath string) bool {
	requestSegments := strings.Split(requestPath, "/")
	documentedSegments := strings.Split(documentedPath, "/")

	if len(requestSegments) != len(documentedSegments) {
		return false
	}

	for i, segment := range documentedSegments {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			continue
		}
		if strings.HasPrefix(requestSegments[i], ":") {
			continue
		}
		if segment != requestSegments[i] {
			return false
		}
	}

	return true
}
