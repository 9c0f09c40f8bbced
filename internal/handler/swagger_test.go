package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const miniSwagger = `{
	"swagger": "2.0",
	"info": {"title": "t", "version": "1"},
	"paths": {
		"/things/{id}": {
			"get": {
				"parameters": [
					{"name": "id", "in": "path", "required": true, "type": "string"},
					{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Thing"}}
				],
				"responses": {"200": {"schema": {"$ref": "#/definitions/Thing"}}}
			}
		}
	},
	"definitions": {
		"Thing": {"type": "object", "properties": {"child": {"$ref": "#/definitions/Child"}}}
	},
	"securityDefinitions": {"BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}}
}`

func TestBuildOpenAPI3(t *testing.T) {
	servers := []Server{{URL: "http://localhost:8080/api/v1", Description: "Local"}}

	spec, err := buildOpenAPI3(miniSwagger, servers)
	require.NoError(t, err)

	assert.Equal(t, "3.0.3", spec.OpenAPI)
	assert.Equal(t, servers, spec.Servers)
	assert.Contains(t, spec.Components, "securitySchemes")

	raw, err := json.Marshal(spec)
	require.NoError(t, err)
	body := string(raw)
	assert.NotContains(t, body, "#/definitions/")
	assert.Contains(t, body, "#/components/schemas/Child")

	get := spec.Paths["/things/{id}"].(map[string]interface{})["get"].(map[string]interface{})
	params := get["parameters"].([]interface{})
	pathParam := params[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"type": "string"}, pathParam["schema"])
	assert.NotContains(t, pathParam, "type")

	assert.Len(t, params, 1)

	requestBody := get["requestBody"].(map[string]interface{})
	assert.Equal(t, true, requestBody["required"])
	content := requestBody["content"].(map[string]interface{})
	jsonBody := content[echo.MIMEApplicationJSON].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"$ref": "#/components/schemas/Thing"}, jsonBody["schema"])
}

func TestBuildOpenAPI3_BodyOnlyOperation(t *testing.T) {
	doc := `{
		"swagger": "2.0",
		"paths": {
			"/things": {
				"post": {
					"parameters": [
						{"name": "request", "in": "body", "description": "new thing", "schema": {"type": "array", "items": {"$ref": "#/definitions/Thing"}}}
					]
				}
			}
		}
	}`

	spec, err := buildOpenAPI3(doc, nil)
	require.NoError(t, err)

	post := spec.Paths["/things"].(map[string]interface{})["post"].(map[string]interface{})
	assert.NotContains(t, post, "parameters")

	requestBody := post["requestBody"].(map[string]interface{})
	assert.Equal(t, "new thing", requestBody["description"])
	schema := requestBody["content"].(map[string]interface{})[echo.MIMEApplicationJSON].(map[string]interface{})["schema"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"$ref": "#/components/schemas/Thing"}, schema["items"])
}

func TestBuildOpenAPI3_InvalidDoc(t *testing.T) {
	_, err := buildOpenAPI3("not json", nil)
	assert.Error(t, err)
}

func TestServeOpenAPI3Spec(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/swagger/openapi3.json", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := ServeOpenAPI3Spec([]Server{{URL: "http://localhost:8080/api/v1", Description: "Local"}})(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var spec OpenAPI3Spec
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Contains(t, spec.Paths, "/transactions")
	assert.Contains(t, spec.Paths, "/recurring-transactions/materialize")
	assert.Equal(t, "Fortuna Ledger API", spec.Info["title"])
}
