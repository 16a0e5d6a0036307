package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dept Portal API",
        "description": "Department workspace: members, timetable, substitutes, merit scores, documents, demos and notices.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {"BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}},
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign in",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Wrong credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Awaiting approval", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Users"],
                "summary": "Register a new member",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/RegisterRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {
                        "description": "Username taken or class already held",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current member",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/password": {
            "put": {
                "tags": ["Authentication"],
                "summary": "Change own password",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ChangePasswordRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List members",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "approved", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/class-conflicts": {
            "get": {
                "tags": ["Users"],
                "summary": "Check who holds a class",
                "parameters": [
                    {"name": "label", "in": "query", "type": "string", "required": true},
                    {"name": "userId", "in": "query", "type": "string"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/{id}": {
            "put": {
                "tags": ["Users"],
                "summary": "Update member",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/UpdateUserRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Class conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete member",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {
                        "description": "Main administrators only",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/{id}/approve": {
            "post": {
                "tags": ["Users"],
                "summary": "Approve member",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Class conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/{id}/role": {
            "put": {
                "tags": ["Users"],
                "summary": "Change member role",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ChangeRoleRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {
                        "description": "Main administrators only",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule": {
            "get": {
                "tags": ["Schedule"],
                "summary": "List timetable slots",
                "parameters": [
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "dayOfWeek", "in": "query", "type": "integer"},
                    {"name": "session", "in": "query", "type": "string", "enum": ["Morning", "Afternoon"]}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedule"],
                "summary": "Create or update a slot",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/SaveSlotRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {
                        "description": "Slot already taken",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/me": {
            "get": {
                "tags": ["Schedule"],
                "summary": "My timetable",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/{id}": {
            "delete": {
                "tags": ["Schedule"],
                "summary": "Delete slot",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes": {
            "get": {
                "tags": ["Substitutes"],
                "summary": "List substitute requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/market": {
            "get": {
                "tags": ["Substitutes"],
                "summary": "Open requests I can take",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/mine/absences": {
            "get": {
                "tags": ["Substitutes"],
                "summary": "My absences",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/mine/substitutions": {
            "get": {
                "tags": ["Substitutes"],
                "summary": "Classes I cover",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/affected": {
            "get": {
                "tags": ["Substitutes"],
                "summary": "Lessons affected by an absence",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "required": true},
                    {
                        "name": "session",
                        "in": "query",
                        "type": "string",
                        "enum": ["Morning", "Afternoon", "AllDay"]
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/absences": {
            "post": {
                "tags": ["Substitutes"],
                "summary": "Register an absence",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/RegisterAbsenceRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "207": {"description": "Some slots failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/{id}/accept": {
            "post": {
                "tags": ["Substitutes"],
                "summary": "Take a request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {
                        "description": "Already taken or busy",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/{id}": {
            "delete": {
                "tags": ["Substitutes"],
                "summary": "Cancel a request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/{id}/review": {
            "patch": {
                "tags": ["Substitutes"],
                "summary": "Review a request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ReviewSubstituteRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutes/points": {
            "get": {
                "tags": ["Substitutes"],
                "summary": "Substitution points per teacher",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                },
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ]
            }
        },
        "/scores": {
            "get": {
                "tags": ["Scores"],
                "summary": "Merit table",
                "parameters": [{"name": "period", "in": "query", "type": "string", "enum": ["HKI", "HKII", "Cả năm"]}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/{teacherId}": {
            "put": {
                "tags": ["Scores"],
                "summary": "Update a teacher's scores",
                "parameters": [
                    {"name": "teacherId", "in": "path", "required": true, "type": "string"},
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/export": {
            "post": {
                "tags": ["Scores"],
                "summary": "Export the merit table",
                "parameters": [
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["xlsx", "csv"]}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List documents",
                "parameters": [
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "grade", "in": "query", "type": "integer"},
                    {"name": "authorId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document",
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "title", "in": "formData", "type": "string", "required": true},
                    {"name": "category", "in": "formData", "type": "string", "required": true},
                    {"name": "type", "in": "formData", "type": "string", "required": true},
                    {"name": "grade", "in": "formData", "type": "integer", "required": true}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {
                        "description": "Drive not configured",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/uploads/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Upload progress",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/review": {
            "patch": {
                "tags": ["Documents"],
                "summary": "Review a document",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ReviewDocumentRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}": {
            "delete": {
                "tags": ["Documents"],
                "summary": "Delete a document",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/demos": {
            "get": {
                "tags": ["Demos"],
                "summary": "List teaching demos",
                "parameters": [
                    {"name": "week", "in": "query", "type": "integer"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Demos"],
                "summary": "Register a demo",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/RegisterDemoRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/demos/stats": {
            "get": {
                "tags": ["Demos"],
                "summary": "Demo counts",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/demos/slots": {
            "get": {
                "tags": ["Demos"],
                "summary": "Teacher's slots on a date",
                "parameters": [
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "date", "in": "query", "type": "string", "required": true}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/demos/available": {
            "get": {
                "tags": ["Demos"],
                "summary": "Colleagues free to attend",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "required": true},
                    {"name": "period", "in": "query", "type": "integer", "required": true},
                    {"name": "session", "in": "query", "type": "string", "enum": ["Morning", "Afternoon"]},
                    {"name": "teacherId", "in": "query", "type": "string"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/demos/{id}/status": {
            "patch": {
                "tags": ["Demos"],
                "summary": "Update demo status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/UpdateDemoStatusRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/demos/{id}": {
            "delete": {
                "tags": ["Demos"],
                "summary": "Delete a demo",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lesson-plans": {
            "get": {
                "tags": ["Lesson Plans"],
                "summary": "List lesson plan reviews",
                "parameters": [
                    {"name": "week", "in": "query", "type": "integer"},
                    {"name": "teacherId", "in": "query", "type": "string"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lesson-plans/comments": {
            "post": {
                "tags": ["Lesson Plans"],
                "summary": "Add a review comment",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/AddCommentRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lesson-plans/{id}/comments/{commentId}": {
            "delete": {
                "tags": ["Lesson Plans"],
                "summary": "Delete a comment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "commentId", "in": "path", "required": true, "type": "string"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lesson-plans/export": {
            "post": {
                "tags": ["Lesson Plans"],
                "summary": "Export reviews as PDF",
                "parameters": [
                    {"name": "week", "in": "query", "type": "integer"},
                    {"name": "teacherId", "in": "query", "type": "string"}
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notices",
                "parameters": [{"name": "limit", "in": "query", "type": "integer"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Notifications"],
                "summary": "Post a notice",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/PostNotificationRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/{id}": {
            "delete": {
                "tags": ["Notifications"],
                "summary": "Delete a notice",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Personal dashboard",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/settings/client-id": {
            "get": {
                "tags": ["Settings"],
                "summary": "Google client id",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Override the Google client id",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ClientIDRequest"}
                    }
                ],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/meta/options": {
            "get": {
                "tags": ["Meta"],
                "summary": "Form options",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a generated export",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "produces": ["application/octet-stream"],
                "responses": {
                    "200": {"description": "File"},
                    "403": {
                        "description": "Invalid or expired link",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Process metrics summary",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}},
            "required": ["username", "password"]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {"old_password": {"type": "string"}, "new_password": {"type": "string"}},
            "required": ["old_password", "new_password"]
        },
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string", "enum": ["GV", "NV"]},
                "staffPosition": {"type": "string"},
                "assignedClasses": {"type": "array", "items": {"type": "string"}},
                "gradeLevel": {"type": "array", "items": {"type": "integer"}},
                "isChuNhiem": {"type": "boolean"}
            },
            "required": ["username", "password", "name", "role"]
        },
        "UpdateUserRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "subject": {"type": "string"},
                "staffPosition": {"type": "string"},
                "assignedClasses": {"type": "array", "items": {"type": "string"}},
                "gradeLevel": {"type": "array", "items": {"type": "integer"}},
                "isChuNhiem": {"type": "boolean"},
                "duties": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ChangeRoleRequest": {"type": "object", "properties": {"role": {"type": "string"}}, "required": ["role"]},
        "SaveSlotRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "teacherId": {"type": "string"},
                "dayOfWeek": {"type": "integer"},
                "period": {"type": "integer"},
                "session": {"type": "string"},
                "className": {"type": "string"},
                "note": {"type": "string"}
            },
            "required": ["dayOfWeek", "period", "session", "className"]
        },
        "RegisterAbsenceRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "session": {"type": "string"},
                "reason": {"type": "string"},
                "allOrNothing": {"type": "boolean"}
            },
            "required": ["date", "session", "reason"]
        },
        "ReviewSubstituteRequest": {
            "type": "object",
            "properties": {"status": {"type": "string"}, "isFlagged": {"type": "boolean"}, "adminNote": {"type": "string"}}
        },
        "ReviewDocumentRequest": {
            "type": "object",
            "properties": {"status": {"type": "string"}, "note": {"type": "string"}},
            "required": ["status"]
        },
        "RegisterDemoRequest": {
            "type": "object",
            "required": ["week", "date", "period", "session", "lessonName"],
            "properties": {
                "teacherId": {"type": "string"},
                "week": {"type": "integer"},
                "date": {"type": "string"},
                "period": {"type": "integer"},
                "session": {"type": "string"},
                "className": {"type": "string"},
                "tct": {"type": "integer"},
                "lessonName": {"type": "string"},
                "reporterId": {"type": "string"}
            }
        },
        "UpdateDemoStatusRequest": {
            "type": "object",
            "properties": {"isCancelled": {"type": "boolean"}, "isLate": {"type": "boolean"}, "note": {"type": "string"}}
        },
        "AddCommentRequest": {
            "type": "object",
            "required": ["teacherId", "week", "content", "type"],
            "properties": {
                "teacherId": {"type": "string"},
                "week": {"type": "integer"},
                "planName": {"type": "string"},
                "content": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "PostNotificationRequest": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "executionTime": {"type": "string"},
                "sendEmailReminder": {"type": "boolean"},
                "isImportant": {"type": "boolean"}
            },
            "required": ["content"]
        },
        "ClientIDRequest": {"type": "object", "properties": {"clientId": {"type": "string"}}},
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}, "status": {"type": "integer"}}
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
