// Package docs registers the OpenAPI document of the calculation API with swag.
// Regenerate with: swag init -g main.go
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
        "/api/v1/calc/electricity": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Computes kgCO2e for a monthly electricity consumption. Replaying the same idempotency key returns the stored result.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Calculations"],
                "summary": "Compute electricity emissions",
                "parameters": [
                    {"type": "string", "description": "Idempotency key, takes precedence over the body field", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Electricity consumption", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ElectricityCalcRequest"}}
                ],
                "responses": {
                    "200": {"description": "Calculation result", "schema": {"$ref": "#/definitions/dto.CalcResultEnvelope"}},
                    "400": {"description": "Validation error or invalid input", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "422": {"description": "No applicable emission factor", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/calc/transport": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Computes kgCO2e for a trip. fuelType is required for car and motorcycle; occupancy divides the result.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Calculations"],
                "summary": "Compute transport emissions",
                "parameters": [
                    {"type": "string", "description": "Idempotency key, takes precedence over the body field", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Trip", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.TransportCalcRequest"}}
                ],
                "responses": {
                    "200": {"description": "Calculation result", "schema": {"$ref": "#/definitions/dto.CalcResultEnvelope"}},
                    "400": {"description": "Validation error or invalid input", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "422": {"description": "No applicable emission factor", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/calc/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Paginated history of the caller's calculations, newest first, with subcategory labels and the applied factor.",
                "produces": ["application/json"],
                "tags": ["Calculations"],
                "summary": "Calculation history",
                "parameters": [
                    {"type": "integer", "default": 0, "description": "0-based page", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Page size", "name": "pageSize", "in": "query"},
                    {"type": "string", "description": "electricity or transport", "name": "category", "in": "query"},
                    {"type": "string", "description": "Created at or after (YYYY-MM-DD or RFC3339)", "name": "from", "in": "query"},
                    {"type": "string", "description": "Created at or before (YYYY-MM-DD or RFC3339)", "name": "to", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "History page", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/calc/history/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Same filters as the history endpoint, paging ignored. Returns an .xlsx workbook.",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Calculations"],
                "summary": "Export calculation history",
                "parameters": [
                    {"type": "string", "description": "electricity or transport", "name": "category", "in": "query"},
                    {"type": "string", "description": "Created at or after", "name": "from", "in": "query"},
                    {"type": "string", "description": "Created at or before", "name": "to", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "History workbook", "schema": {"type": "file"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/factors/resolve": {
            "get": {
                "description": "Returns the factor the engine would apply for the tuple. Exact country rows win over fallback rows.",
                "produces": ["application/json"],
                "tags": ["Factors"],
                "summary": "Resolve emission factor",
                "parameters": [
                    {"type": "string", "description": "electricity or transport", "name": "category", "in": "query", "required": true},
                    {"type": "string", "description": "Transport subcategory, e.g. car_gasoline", "name": "subcategory", "in": "query"},
                    {"type": "string", "description": "ISO country code", "name": "country", "in": "query"},
                    {"type": "string", "description": "YYYY-MM", "name": "period", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "Resolved factor", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "No applicable factor", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {}
            }
        },
        "dto.CalcResultResponse": {
            "type": "object",
            "properties": {
                "calcId": {"type": "string"},
                "kgCO2e": {"type": "number"},
                "factorHash": {"type": "string"}
            }
        },
        "dto.CalcResultEnvelope": {
            "allOf": [
                {"$ref": "#/definitions/dto.APIResponse"},
                {"type": "object", "properties": {"data": {"$ref": "#/definitions/dto.CalcResultResponse"}}}
            ]
        },
        "dto.ElectricityCalcRequest": {
            "type": "object",
            "required": ["period"],
            "properties": {
                "kwh": {"type": "number", "example": 125.5},
                "country": {"type": "string", "example": "CL"},
                "period": {"type": "string", "example": "2025-09"},
                "idempotencyKey": {"type": "string"},
                "selectedAppliances": {"type": "array", "items": {"type": "string"}},
                "career": {"type": "string"},
                "schedule": {"type": "string"}
            }
        },
        "dto.TransportCalcRequest": {
            "type": "object",
            "required": ["period", "transportMode"],
            "properties": {
                "distance": {"type": "number", "example": 10},
                "transportMode": {"type": "string", "example": "car"},
                "fuelType": {"type": "string", "example": "gasoline"},
                "occupancy": {"type": "integer", "example": 4},
                "country": {"type": "string", "example": "CL"},
                "period": {"type": "string", "example": "2025-09"},
                "idempotencyKey": {"type": "string"},
                "originLat": {"type": "number"},
                "originLng": {"type": "number"},
                "destinationLat": {"type": "number"},
                "destinationLng": {"type": "number"},
                "originAddress": {"type": "string"},
                "destinationAddress": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "EcoEstudiante Calc API",
	Description:      "Emission calculation engine with idempotent persistence",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
