package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/docs"
	"github.com/labstack/echo/v4"
	"github.com/swaggo/swag"
)

// OpenAPI3Spec is the subset of an OpenAPI 3.0 document produced from the swag output
type OpenAPI3Spec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       map[string]interface{} `json:"info"`
	Servers    []Server               `json:"servers"`
	Paths      map[string]interface{} `json:"paths"`
	Components map[string]interface{} `json:"components,omitempty"`
}

// Server represents an OpenAPI 3.0 server
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

const (
	swagger2RefPrefix = "#/definitions/"
	openAPI3RefPrefix = "#/components/schemas/"
)

var parameterSchemaFields = []string{"type", "format", "enum", "default", "minimum", "maximum", "items"}

// convertNode rewrites swagger 2.0 refs and parameters into their OpenAPI 3.0
// form. Body parameters become the operation's requestBody.
func convertNode(node interface{}) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		if isParameter(v) {
			return convertParameter(v)
		}
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if ref, ok := value.(string); ok && key == "$ref" {
				out[key] = strings.Replace(ref, swagger2RefPrefix, openAPI3RefPrefix, 1)
				continue
			}
			out[key] = convertNode(value)
		}
		liftRequestBody(out)
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = convertNode(item)
		}
		return out
	default:
		return node
	}
}

func isParameter(v map[string]interface{}) bool {
	_, hasIn := v["in"]
	_, hasName := v["name"]
	return hasIn && hasName
}

func convertParameter(param map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, field := range []string{"name", "in", "description", "required"} {
		if val, ok := param[field]; ok {
			out[field] = val
		}
	}
	if param["in"] == "body" {
		if schema, ok := param["schema"]; ok {
			out["schema"] = convertNode(schema)
		}
		return out
	}

	schema := make(map[string]interface{})
	for _, field := range parameterSchemaFields {
		val, ok := param[field]
		if !ok {
			continue
		}
		if field == "items" {
			val = convertNode(val)
		}
		schema[field] = val
	}
	if len(schema) > 0 {
		out["schema"] = schema
	}
	return out
}

// liftRequestBody moves a converted body parameter of op into op.requestBody
func liftRequestBody(op map[string]interface{}) {
	params, ok := op["parameters"].([]interface{})
	if !ok {
		return
	}

	kept := make([]interface{}, 0, len(params))
	for _, p := range params {
		param, ok := p.(map[string]interface{})
		if !ok || param["in"] != "body" {
			kept = append(kept, p)
			continue
		}
		body := map[string]interface{}{
			"content": map[string]interface{}{
				echo.MIMEApplicationJSON: map[string]interface{}{"schema": param["schema"]},
			},
		}
		for _, field := range []string{"description", "required"} {
			if val, ok := param[field]; ok {
				body[field] = val
			}
		}
		op["requestBody"] = body
	}

	if len(kept) == 0 {
		delete(op, "parameters")
		return
	}
	op["parameters"] = kept
}

// buildOpenAPI3 converts a swag generated swagger 2.0 document
func buildOpenAPI3(doc string, servers []Server) (*OpenAPI3Spec, error) {
	var swagger2 map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &swagger2); err != nil {
		return nil, err
	}

	info, _ := swagger2["info"].(map[string]interface{})
	paths, _ := swagger2["paths"].(map[string]interface{})
	if paths == nil {
		paths = map[string]interface{}{}
	}

	components := make(map[string]interface{})
	if secDefs, ok := swagger2["securityDefinitions"].(map[string]interface{}); ok {
		components["securitySchemes"] = secDefs
	}
	if definitions, ok := swagger2["definitions"].(map[string]interface{}); ok {
		components["schemas"] = convertNode(definitions)
	}

	return &OpenAPI3Spec{
		OpenAPI:    "3.0.3",
		Info:       info,
		Servers:    servers,
		Paths:      convertNode(paths).(map[string]interface{}),
		Components: components,
	}, nil
}

// ServeOpenAPI3Spec serves the API description as OpenAPI 3.0 listing servers
func ServeOpenAPI3Spec(servers []Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
		if err != nil {
			return NewInternalError(c, "Failed to read swagger doc")
		}
		spec, err := buildOpenAPI3(doc, servers)
		if err != nil {
			return NewInternalError(c, "Failed to parse swagger doc")
		}
		return c.JSON(http.StatusOK, spec)
	}
}
