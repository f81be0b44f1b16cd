// Package docs registers the OpenAPI document of the ingestion API.
// Regenerate with: swag init -g cmd/main.go
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Liveness",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/iot/event": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Classify a device report into open, close, delivery or removal and record it",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["iot"],
                "summary": "Report a telemetry event",
                "parameters": [
                    {"description": "Telemetry report", "name": "report", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.TelemetryReportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.TelemetryReportResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/iot/report": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["iot"],
                "summary": "Report device health",
                "parameters": [
                    {"description": "Status report", "name": "report", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.StatusReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/iot/activate": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["iot"],
                "summary": "Activate a device",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/iot/status": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["iot"],
                "summary": "Get device status",
                "parameters": [
                    {"type": "string", "name": "serial", "in": "query"},
                    {"type": "string", "name": "serial_number", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/iot/events": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["iot"],
                "summary": "List recent events",
                "parameters": [
                    {"type": "string", "name": "serial", "in": "query"},
                    {"type": "string", "name": "serial_number", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/iot/upload": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["iot"],
                "summary": "List images",
                "parameters": [
                    {"type": "string", "name": "serial", "in": "query"},
                    {"type": "string", "name": "serial_number", "in": "query"},
                    {"type": "string", "name": "event_type", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["iot"],
                "summary": "Upload a delivery image",
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "name": "serial_number", "in": "formData", "required": true},
                    {"type": "string", "name": "event_type", "in": "formData"},
                    {"type": "string", "name": "timestamp", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/images/{id}": {
            "get": {
                "produces": ["image/jpeg"],
                "tags": ["images"],
                "summary": "Get an image",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/admin/serials": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Seed a serial number",
                "responses": {"200": {"description": "OK"}, "201": {"description": "Created"}}
            }
        },
        "/admin/keys": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Issue an API key",
                "responses": {"201": {"description": "Created"}}
            }
        }
    },
    "definitions": {
        "errors.APIError": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "integer"},
                "request_id": {"type": "string"},
                "details": {}
            }
        },
        "models.TelemetryReportRequest": {
            "type": "object",
            "required": ["serial_number", "event_data"],
            "properties": {
                "serial_number": {"type": "string"},
                "event_data": {
                    "type": "object",
                    "properties": {
                        "reed_sensor": {"type": "boolean"},
                        "event_type": {"type": "string"},
                        "detection_method": {"type": "string"},
                        "weight_value": {"type": "number"},
                        "weight_threshold": {"type": "number"}
                    }
                },
                "timestamp": {"type": "string", "format": "date-time"},
                "firmware_version": {"type": "string"},
                "battery_level": {"type": "integer", "minimum": 0, "maximum": 100},
                "signal_strength": {"type": "integer", "minimum": -120, "maximum": 0},
                "temperature": {"type": "number", "minimum": -50, "maximum": 80}
            }
        },
        "models.TelemetryReportResponse": {
            "type": "object",
            "properties": {
                "event_id": {"type": "string"},
                "event_kind": {"type": "string", "enum": ["open", "close", "delivery", "removal"]},
                "detection_method": {"type": "string", "enum": ["reed_sensor", "weight_sensor", "explicit"]},
                "device_id": {"type": "string"},
                "serial_number": {"type": "string"},
                "status": {"type": "string", "enum": ["claimed_device", "unclaimed", "claimed_but_not_linked"]},
                "weight_data": {
                    "type": "object",
                    "properties": {
                        "current": {"type": "number"},
                        "previous": {"type": "number"},
                        "delta": {"type": "number"},
                        "detected": {"type": "boolean"},
                        "threshold": {"type": "number"}
                    }
                },
                "battery_warning": {"type": "boolean"},
                "occurred_at": {"type": "string", "format": "date-time"}
            }
        },
        "models.StatusReportRequest": {
            "type": "object",
            "required": ["serial_number"],
            "properties": {
                "serial_number": {"type": "string"},
                "firmware_version": {"type": "string"},
                "battery_level": {"type": "integer"},
                "signal_strength": {"type": "integer"},
                "temperature": {"type": "number"},
                "weight_value": {"type": "number"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "MailGuard Ingestion API",
	Description:      "Device telemetry ingestion, reconciliation and image correlation for smart mailboxes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
