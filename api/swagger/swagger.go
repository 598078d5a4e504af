// Package swagger carries the hand-maintained OpenAPI document served at
// /docs in non-production environments.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FormHub API",
        "description": "Form builder and response collection backend",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login and profile"},
        {"name": "Users", "description": "Admin-only account management"},
        {"name": "Forms", "description": "Form builder CRUD and public share reads"},
        {"name": "Responses", "description": "Submission, listing and export"},
        {"name": "Grants", "description": "Per-form capability sharing"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Profile", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid token"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Users", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/users/{id}/reset-password": {
            "post": {
                "tags": ["Users"],
                "summary": "Reset a user's password",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object", "properties": {"password": {"type": "string"}}}}
                ],
                "responses": {
                    "204": {"description": "Password reset"}
                }
            }
        },
        "/users/{id}": {
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deactivated"}
                }
            }
        },
        "/forms": {
            "get": {
                "tags": ["Forms"],
                "summary": "List visible forms",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Owned and shared forms", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Forms"],
                "summary": "Create form",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FormRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/forms/{id}": {
            "get": {
                "tags": ["Forms"],
                "summary": "Get form detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Form with full tree"},
                    "404": {"description": "Not found or not visible"}
                }
            },
            "put": {
                "tags": ["Forms"],
                "summary": "Replace form tree",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FormRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated form"},
                    "403": {"description": "No edit capability"}
                }
            },
            "delete": {
                "tags": ["Forms"],
                "summary": "Delete form",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Only the owner can delete"}
                }
            }
        },
        "/forms/shared/{token}": {
            "get": {
                "tags": ["Forms"],
                "summary": "Get form by share token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Form with full tree"},
                    "404": {"description": "Unknown token"}
                }
            }
        },
        "/forms/shared/{token}/responses": {
            "post": {
                "tags": ["Responses"],
                "summary": "Submit a response",
                "description": "Accepts structured JSON or a multipart form with flattened answers[i][field] keys.",
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Stored"},
                    "400": {"description": "Validation failed; every failing answer is listed"}
                }
            }
        },
        "/forms/{id}/responses": {
            "get": {
                "tags": ["Responses"],
                "summary": "List a form's responses",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Responses, newest first"},
                    "403": {"description": "No view_responses capability"}
                }
            }
        },
        "/forms/{id}/export": {
            "get": {
                "tags": ["Responses"],
                "summary": "Export a form's responses",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/grants": {
            "get": {
                "tags": ["Grants"],
                "summary": "List grants on the caller's forms",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Grants"}
                }
            },
            "post": {
                "tags": ["Grants"],
                "summary": "Share a form with another user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGrantRequest"}}
                ],
                "responses": {
                    "201": {"description": "Granted"},
                    "404": {"description": "Form or email not found"},
                    "409": {"description": "Duplicate grant"}
                }
            }
        },
        "/grants/{id}": {
            "delete": {
                "tags": ["Grants"],
                "summary": "Revoke a grant",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Revoked"},
                    "404": {"description": "Grant not found"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateUserRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["admin", "user"]}
            }
        },
        "FormRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "sections": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/SectionInput"}
                }
            }
        },
        "SectionInput": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "order": {"type": "integer"},
                "questions": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/QuestionInput"}
                }
            }
        },
        "QuestionInput": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "question_type": {"type": "string", "enum": ["short_text", "long_text", "number", "float", "multiple_choice", "multiple_select", "media"]},
                "required": {"type": "boolean"},
                "order": {"type": "integer"},
                "choices": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "text": {"type": "string"},
                            "order": {"type": "integer"}
                        }
                    }
                }
            }
        },
        "CreateGrantRequest": {
            "type": "object",
            "required": ["form", "email", "permission_type"],
            "properties": {
                "form": {"type": "string"},
                "email": {"type": "string"},
                "permission_type": {"type": "string", "enum": ["edit", "view_responses"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
