// Package docs is generated by swaggo/swag from the handler annotations.
// Regenerate with: swag init -g cmd/server/main.go -o internal/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Sina Niyavarzi",
            "email": "sinaniya@gmail.com"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/books": {
            "get": {
                "description": "List every book owned by the signed-in user",
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "List books",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.ListBooksResponse"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Create a book owned by the signed-in user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Create a book",
                "parameters": [
                    {"type": "string", "description": "Value of the bookshelf_csrf cookie", "name": "X-CSRF-Token", "in": "header", "required": true},
                    {"description": "Book to create", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateBookRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.BookResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}}
                }
            }
        },
        "/books/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Get a book by ID",
                "parameters": [
                    {"type": "integer", "description": "Book ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.BookResponse"}},
                    "400": {"description": "Invalid ID", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "404": {"description": "Book not found", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Delete a book and its cover image",
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Delete a book",
                "parameters": [
                    {"type": "string", "description": "Value of the bookshelf_csrf cookie", "name": "X-CSRF-Token", "in": "header", "required": true},
                    {"type": "integer", "description": "Book ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No content", "schema": {"type": "string"}},
                    "400": {"description": "Invalid ID", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "404": {"description": "Book not found", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}}
                }
            },
            "patch": {
                "description": "Partially update a book. The cover image is left as is.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Update a book",
                "parameters": [
                    {"type": "string", "description": "Value of the bookshelf_csrf cookie", "name": "X-CSRF-Token", "in": "header", "required": true},
                    {"type": "integer", "description": "Book ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to update", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.UpdateBookRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.BookResponse"}},
                    "400": {"description": "Invalid ID or payload", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "404": {"description": "Book not found", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/validation.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.Book": {
            "type": "object",
            "properties": {
                "author": {"type": "string"},
                "created_at": {"type": "string", "example": "2025-11-24T10:00:00Z"},
                "id": {"type": "integer"},
                "image_url": {"type": "string"},
                "isbn": {"type": "string"},
                "publication_year": {"type": "integer"},
                "publisher": {"type": "string"},
                "title": {"type": "string"}
            }
        },
        "handler.BookResponse": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/handler.Book"}
            }
        },
        "handler.CreateBookRequest": {
            "type": "object",
            "required": ["author", "title"],
            "properties": {
                "author": {"type": "string", "maxLength": 255},
                "isbn": {"type": "string", "maxLength": 13, "example": "9780132350884"},
                "publication_year": {"type": "integer", "maximum": 9999, "minimum": 1000, "example": 2008},
                "publisher": {"type": "string", "maxLength": 255},
                "title": {"type": "string", "maxLength": 255}
            }
        },
        "handler.ListBooksResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/handler.Book"}},
                "total": {"type": "integer"}
            }
        },
        "handler.UpdateBookRequest": {
            "type": "object",
            "properties": {
                "author": {"type": "string", "maxLength": 255},
                "isbn": {"type": "string", "maxLength": 13, "example": "9780132350884"},
                "publication_year": {"type": "integer", "maximum": 9999, "minimum": 1000, "example": 2008},
                "publisher": {"type": "string", "maxLength": 255},
                "title": {"type": "string", "maxLength": 255}
            }
        },
        "validation.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/validation.FieldError"}},
                "message": {"type": "string"}
            }
        },
        "validation.FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"},
                "rule": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Bookshelf Catalog API",
	Description:      "JSON API over the signed-in user's book catalog.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
