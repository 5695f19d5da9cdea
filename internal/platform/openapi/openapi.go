package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

// Generator builds the OpenAPI 3.0 document for the portal API.
type Generator struct {
	version string
	baseURL string
}

// NewGenerator creates a new OpenAPI document generator.
func NewGenerator(version, baseURL string) *Generator {
	return &Generator{version: version, baseURL: baseURL}
}

// GenerateSpec produces the OpenAPI 3.0 document as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	idParam := []map[string]interface{}{
		{"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "string"}},
	}
	bearer := []map[string][]string{{"bearerAuth": {}}}

	paths := map[string]interface{}{
		"/": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Service health",
				"operationId": "health",
				"tags":        []string{"system"},
				"responses": map[string]interface{}{
					"200": jsonResponse("Service is up", "#/components/schemas/Health"),
				},
			},
		},
		"/health/db": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Database pool health",
				"operationId": "healthDB",
				"tags":        []string{"system"},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Pool statistics"},
					"503": map[string]interface{}{"description": "Database unavailable or disabled"},
				},
			},
		},
		"/auth/login": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Exchange credentials for a bearer token",
				"operationId": "login",
				"tags":        []string{"auth"},
				"requestBody": map[string]interface{}{
					"required": true,
					"content": map[string]interface{}{
						"application/json":                  schemaRef("#/components/schemas/LoginRequest"),
						"application/x-www-form-urlencoded": schemaRef("#/components/schemas/LoginRequest"),
					},
				},
				"responses": map[string]interface{}{
					"200": jsonResponse("Token issued", "#/components/schemas/Token"),
					"400": errorResponse("Missing username or password"),
					"401": errorResponse("Invalid credentials"),
					"429": errorResponse("Too many login attempts"),
				},
			},
		},
		"/auth/status": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Describe the current session",
				"operationId": "authStatus",
				"tags":        []string{"auth"},
				"security":    bearer,
				"responses": map[string]interface{}{
					"200": jsonResponse("Session is valid", "#/components/schemas/AuthStatus"),
					"401": errorResponse("Missing, invalid or expired token"),
				},
			},
		},
		"/auth/logout": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Revoke the current session",
				"operationId": "logout",
				"tags":        []string{"auth"},
				"security":    bearer,
				"responses": map[string]interface{}{
					"204": map[string]interface{}{"description": "Session revoked"},
					"401": errorResponse("Missing, invalid or expired token"),
				},
			},
		},
		"/patients": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "List patients",
				"operationId": "listPatients",
				"tags":        []string{"patients"},
				"security":    bearer,
				"parameters": []map[string]interface{}{
					{"name": "limit", "in": "query", "schema": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 500}},
					{"name": "offset", "in": "query", "schema": map[string]interface{}{"type": "integer", "minimum": 0}},
				},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{
						"description": "Patients ordered by creation time",
						"headers": map[string]interface{}{
							"X-Total-Count": map[string]interface{}{"schema": map[string]string{"type": "integer"}},
							"Link":          map[string]interface{}{"schema": map[string]string{"type": "string"}},
						},
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{
									"type":  "array",
									"items": map[string]interface{}{"$ref": "#/components/schemas/Patient"},
								},
							},
						},
					},
					"401": errorResponse("Missing, invalid or expired token"),
				},
			},
			"post": map[string]interface{}{
				"summary":     "Create a patient",
				"operationId": "createPatient",
				"tags":        []string{"patients"},
				"security":    bearer,
				"requestBody": jsonBody("#/components/schemas/PatientCreate"),
				"responses": map[string]interface{}{
					"201": jsonResponse("Created", "#/components/schemas/Patient"),
					"400": errorResponse("Validation failed"),
					"401": errorResponse("Missing, invalid or expired token"),
					"409": errorResponse("Patient id already exists"),
				},
			},
		},
		"/patients/{id}": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Read a patient",
				"operationId": "getPatient",
				"tags":        []string{"patients"},
				"security":    bearer,
				"parameters":  idParam,
				"responses": map[string]interface{}{
					"200": jsonResponse("Success", "#/components/schemas/Patient"),
					"401": errorResponse("Missing, invalid or expired token"),
					"404": errorResponse("Patient not found"),
				},
			},
			"put": map[string]interface{}{
				"summary":     "Update a patient; omitted fields are left unchanged",
				"operationId": "updatePatient",
				"tags":        []string{"patients"},
				"security":    bearer,
				"parameters":  idParam,
				"requestBody": jsonBody("#/components/schemas/PatientUpdate"),
				"responses": map[string]interface{}{
					"200": jsonResponse("Updated", "#/components/schemas/Patient"),
					"400": errorResponse("Validation failed"),
					"401": errorResponse("Missing, invalid or expired token"),
					"404": errorResponse("Patient not found"),
				},
			},
			"delete": map[string]interface{}{
				"summary":     "Delete a patient",
				"operationId": "deletePatient",
				"tags":        []string{"patients"},
				"security":    bearer,
				"parameters":  idParam,
				"responses": map[string]interface{}{
					"204": map[string]interface{}{"description": "Deleted"},
					"401": errorResponse("Missing, invalid or expired token"),
					"404": errorResponse("Patient not found"),
				},
			},
		},
		"/chatbot/send": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Send a message to the assistant",
				"operationId": "chatbotSend",
				"tags":        []string{"chatbot"},
				"security":    bearer,
				"requestBody": jsonBody("#/components/schemas/ChatRequest"),
				"responses": map[string]interface{}{
					"200": jsonResponse("Assistant reply", "#/components/schemas/ChatReply"),
					"401": errorResponse("Missing, invalid or expired token"),
				},
			},
		},
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Patient 360 API",
			"version":     g.version,
			"description": "Patient records, session authentication and a care assistant chatbot",
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]interface{}{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
			"schemas": buildComponentSchemas(),
		},
	}
}

// RegisterRoutes serves the document at /openapi.json.
func (g *Generator) RegisterRoutes(group *echo.Group) {
	group.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
}

// WriteFile writes the indented document to path, creating parent
// directories as needed.
func (g *Generator) WriteFile(path string) error {
	raw, err := json.MarshalIndent(g.GenerateSpec(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal openapi document: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func schemaRef(ref string) map[string]interface{} {
	return map[string]interface{}{
		"schema": map[string]interface{}{"$ref": ref},
	}
}

func jsonBody(ref string) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": schemaRef(ref),
		},
	}
}

func jsonResponse(description, ref string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": schemaRef(ref),
		},
	}
}

func errorResponse(description string) map[string]interface{} {
	return jsonResponse(description, "#/components/schemas/Error")
}

func buildComponentSchemas() map[string]interface{} {
	str := map[string]interface{}{"type": "string"}
	dateTime := map[string]interface{}{"type": "string", "format": "date-time"}
	strArray := map[string]interface{}{"type": "array", "items": str}

	return map[string]interface{}{
		"Error": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"message": str,
			},
			"required": []string{"message"},
		},
		"Health": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"message":      str,
				"db_connected": map[string]interface{}{"type": "boolean"},
				"backend":      map[string]interface{}{"type": "string", "enum": []string{"memory", "database"}},
				"version":      str,
			},
		},
		"LoginRequest": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"username": str,
				"password": map[string]interface{}{"type": "string", "format": "password"},
			},
			"required": []string{"username", "password"},
		},
		"Profile": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"username": str,
				"email":    map[string]interface{}{"type": "string", "format": "email"},
				"roles":    strArray,
			},
		},
		"Token": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"token":      str,
				"token_type": map[string]interface{}{"type": "string", "enum": []string{"bearer"}},
				"expires_at": dateTime,
				"profile":    map[string]interface{}{"$ref": "#/components/schemas/Profile"},
			},
		},
		"AuthStatus": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"authenticated": map[string]interface{}{"type": "boolean"},
				"username":      str,
				"roles":         strArray,
				"expires_at":    dateTime,
			},
		},
		"Patient": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":         str,
				"first_name": str,
				"last_name":  str,
				"email":      map[string]interface{}{"type": "string", "format": "email"},
				"age":        map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 150, "nullable": true},
				"conditions": strArray,
				"created_at": dateTime,
				"updated_at": dateTime,
			},
		},
		"PatientCreate": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":         map[string]interface{}{"type": "string", "maxLength": 64},
				"first_name": str,
				"last_name":  str,
				"email":      map[string]interface{}{"type": "string", "format": "email"},
				"age":        map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 150},
				"conditions": strArray,
			},
			"required": []string{"first_name", "last_name", "email"},
		},
		"PatientUpdate": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"first_name": str,
				"last_name":  str,
				"email":      map[string]interface{}{"type": "string", "format": "email"},
				"age":        map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 150},
				"conditions": strArray,
			},
		},
		"ChatRequest": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"message": str,
				"context": map[string]interface{}{"type": "object", "additionalProperties": true},
			},
			"required": []string{"message"},
		},
		"ChatReply": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"reply": str,
				"model": str,
			},
		},
	}
}
