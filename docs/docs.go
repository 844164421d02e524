// Package docs holds the OpenAPI document served at /api/swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
				"tags": [
					"health"
				],
				"summary": "Basic health check",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"ok": {
									"type": "boolean"
								}
							}
						}
					}
				}
			}
		},
		"/auth/register": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Register a store account",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.AuthResult"
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"409": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.registerRequest"
						}
					}
				]
			}
		},
		"/auth/login": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Log in with a username or email",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.AuthResult"
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.loginRequest"
						}
					}
				]
			}
		},
		"/auth/logout": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Revoke the current token",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"message": {
									"type": "string"
								}
							}
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/users/me": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Get the current user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.User"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/users/upsert": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Create or replace the current user's profile",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Profile"
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"409": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.upsertProfileRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/users/profile": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Get the current user's profile",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Profile"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/users/avatar": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Upload an avatar image",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"avatarUrl": {
									"type": "string"
								}
							}
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "formData",
						"name": "avatar",
						"required": true,
						"type": "file"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/cart": {
			"get": {
				"tags": [
					"cart"
				],
				"summary": "List the cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.CartItem"
							}
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"post": {
				"tags": [
					"cart"
				],
				"summary": "Add a game to the cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.CartItem"
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"409": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.cartItemRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/cart/remove": {
			"post": {
				"tags": [
					"cart"
				],
				"summary": "Remove a game from the cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"success": {
									"type": "boolean"
								}
							}
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"type": "object",
							"properties": {
								"gameId": {
									"type": "string"
								}
							}
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/games/sponsored": {
			"get": {
				"tags": [
					"games"
				],
				"summary": "Sponsored games",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.Game"
							}
						}
					}
				}
			}
		},
		"/games/popular": {
			"get": {
				"tags": [
					"games"
				],
				"summary": "Popular games from RAWG",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.Game"
							}
						}
					},
					"500": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"502": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "query",
						"name": "page",
						"type": "integer"
					},
					{
						"in": "query",
						"name": "page_size",
						"type": "integer"
					},
					{
						"in": "query",
						"name": "ordering",
						"type": "string"
					},
					{
						"in": "query",
						"name": "publisher",
						"type": "string"
					}
				]
			}
		},
		"/notifications": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "List the caller's notifications",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.Notification"
							}
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/notifications/{id}/read": {
			"put": {
				"tags": [
					"notifications"
				],
				"summary": "Mark a notification read",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Notification"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"404": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "integer"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/progress": {
			"get": {
				"tags": [
					"progress"
				],
				"summary": "Completion percentages over the caller's projects and tasks",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Progress"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/feature-flags": {
			"get": {
				"tags": [
					"flags"
				],
				"summary": "Feature flags for the caller",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object"
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		}
	},
	"definitions": {
		"models.ErrorResponse": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				},
				"code": {
					"type": "string"
				}
			}
		},
		"models.User": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"username": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"phone": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"avatarUrl": {
					"type": "string"
				},
				"isComplete": {
					"type": "boolean"
				},
				"createdAt": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				}
			}
		},
		"models.PublicUser": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"username": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"phone": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"avatarUrl": {
					"type": "string"
				},
				"isComplete": {
					"type": "boolean"
				}
			}
		},
		"service.AuthResult": {
			"type": "object",
			"properties": {
				"token": {
					"type": "string"
				},
				"user": {
					"$ref": "#/definitions/models.PublicUser"
				}
			}
		},
		"models.Profile": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"userId": {
					"type": "integer"
				},
				"name": {
					"type": "string"
				},
				"username": {
					"type": "string"
				},
				"phone": {
					"type": "string"
				},
				"avatarUrl": {
					"type": "string"
				},
				"isComplete": {
					"type": "boolean"
				}
			}
		},
		"models.CartItem": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"userId": {
					"type": "integer"
				},
				"gameId": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"coverUrl": {
					"type": "string"
				},
				"price": {
					"type": "number"
				}
			}
		},
		"models.Game": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"coverUrl": {
					"type": "string"
				},
				"released": {
					"type": "string"
				},
				"rating": {
					"type": "number"
				},
				"description": {
					"type": "string"
				},
				"price": {
					"type": "number"
				}
			}
		},
		"models.Task": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"deadline": {
					"type": "string"
				},
				"status": {
					"type": "string",
					"enum": [
						"Not Started",
						"In Progress",
						"Completed"
					]
				},
				"priority": {
					"type": "string",
					"enum": [
						"Low",
						"Medium",
						"High"
					]
				},
				"assignedTo": {
					"type": "integer"
				},
				"assignee": {
					"$ref": "#/definitions/models.User"
				},
				"project": {
					"type": "integer"
				}
			}
		},
		"models.Project": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"startDate": {
					"type": "string"
				},
				"deadline": {
					"type": "string"
				},
				"priority": {
					"type": "string",
					"enum": [
						"High",
						"Medium",
						"Low"
					]
				},
				"teamMembers": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"status": {
					"type": "string",
					"enum": [
						"Planning",
						"In Progress",
						"Completed"
					]
				},
				"createdBy": {
					"type": "integer"
				},
				"tasks": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/models.Task"
					}
				}
			}
		},
		"models.Notification": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"title": {
					"type": "string"
				},
				"message": {
					"type": "string"
				},
				"date": {
					"type": "string"
				},
				"userId": {
					"type": "integer"
				},
				"read": {
					"type": "boolean"
				}
			}
		},
		"models.ProgressCount": {
			"type": "object",
			"properties": {
				"total": {
					"type": "integer"
				},
				"completed": {
					"type": "integer"
				},
				"percent": {
					"type": "integer"
				}
			}
		},
		"models.Progress": {
			"type": "object",
			"properties": {
				"tasks": {
					"$ref": "#/definitions/models.ProgressCount"
				},
				"projects": {
					"$ref": "#/definitions/models.ProgressCount"
				}
			}
		},
		"server.registerRequest": {
			"type": "object",
			"properties": {
				"username": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"phone": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"avatarUrl": {
					"type": "string"
				}
			}
		},
		"server.loginRequest": {
			"type": "object",
			"properties": {
				"identifier": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			}
		},
		"server.upsertProfileRequest": {
			"type": "object",
			"properties": {
				"name": {
					"type": "string"
				},
				"username": {
					"type": "string"
				},
				"phone": {
					"type": "string"
				},
				"avatarUrl": {
					"type": "string"
				},
				"isComplete": {
					"type": "boolean"
				}
			}
		},
		"server.cartItemRequest": {
			"type": "object",
			"properties": {
				"gameId": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"coverUrl": {
					"type": "string"
				},
				"price": {
					"type": "number"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Keystone API",
	Description:      "Game store and project tracker JSON API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
