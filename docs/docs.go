// Package docs holds the swagger description served at /swagger. Regenerate with `swag init -g cmd/api/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/campaigns": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["campaigns"], "summary": "List campaigns", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["campaigns"], "summary": "Create a campaign", "responses": {"201": {"description": "Created"}}}
        },
        "/campaigns/reconcile": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["aggregation"], "summary": "Repair stale campaign counters", "responses": {"200": {"description": "OK"}}}
        },
        "/campaigns/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["campaigns"], "summary": "Get a campaign", "responses": {"200": {"description": "OK"}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["campaigns"], "summary": "Update a campaign", "responses": {"200": {"description": "OK"}}}
        },
        "/campaigns/{id}/consents": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["consents"], "summary": "List consents of a campaign", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["consents"], "summary": "Issue consent records", "responses": {"201": {"description": "Created"}}}
        },
        "/campaigns/{id}/results": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["results"], "summary": "List results of a campaign", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["results"], "summary": "Submit a result", "responses": {"201": {"description": "Created"}}}
        },
        "/campaigns/{id}/results/export": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["results"], "summary": "Export results as xlsx", "responses": {"200": {"description": "OK"}}}
        },
        "/campaigns/{id}/recompute": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["aggregation"], "summary": "Recompute campaign counters", "responses": {"200": {"description": "OK"}}}
        },
        "/consents/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["consents"], "summary": "Get a consent record", "responses": {"200": {"description": "OK"}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["consents"], "summary": "Record a guardian decision", "responses": {"200": {"description": "OK"}}}
        },
        "/students/{id}/consents": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["consents"], "summary": "List consents of a student", "responses": {"200": {"description": "OK"}}}
        },
        "/results/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["results"], "summary": "Get a result", "responses": {"200": {"description": "OK"}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["results"], "summary": "Update a result", "responses": {"200": {"description": "OK"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["results"], "summary": "Delete a result", "responses": {"200": {"description": "OK"}}}
        },
        "/guardians/{id}/notifications": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["notifications"], "summary": "Guardian notification feed", "responses": {"200": {"description": "OK"}}}
        },
        "/labels": {
            "get": {"tags": ["notifications"], "summary": "Display labels", "responses": {"200": {"description": "OK"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT token for authorization",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "School Health API",
	Description:      "Consent and result aggregation for school health checkup and vaccination campaigns",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
