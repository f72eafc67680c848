// Package docs /api/v1 控制面的 OpenAPI 描述
// 与 internal/api 处理器上的 swag 注释一致，可用 swag init -g cmd/server/main.go 重新生成。
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
        "/connection": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["连接管理"],
                "summary": "查询连接状态",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["连接管理"],
                "summary": "连接转换器",
                "description": "设备未授权时进入等待授权状态并返回 202",
                "responses": {
                    "200": {"description": "已连接", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "202": {"description": "等待宿主授权", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "404": {"description": "未找到设备", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "502": {"description": "端点不可用", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["连接管理"],
                "summary": "断开连接",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            }
        },
        "/connection/permission": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["连接管理"],
                "summary": "提交宿主授权结果",
                "parameters": [
                    {"description": "授权结果", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.PermissionRequest"}}
                ],
                "responses": {
                    "200": {"description": "已连接", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "202": {"description": "仍在等待授权", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "400": {"description": "请求无效", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            }
        },
        "/receiver/start": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["接收循环"],
                "summary": "启动接收循环",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "409": {"description": "未连接", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            }
        },
        "/receiver/stop": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["接收循环"],
                "summary": "停止接收循环",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            }
        },
        "/frames": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["下行"],
                "summary": "编码并发送一帧",
                "parameters": [
                    {"description": "帧ID、命令与十六进制数据", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.SendFrameRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "400": {"description": "数据无效或过长", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "409": {"description": "未连接", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            }
        },
        "/axis-limits": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["下行"],
                "summary": "发送轴限位",
                "parameters": [
                    {"description": "轴号与上下限", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.AxisLimitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StandardResponse"}},
                    "409": {"description": "未连接", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            }
        },
        "/frames/latest": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["查询"],
                "summary": "最近一条解码成功的帧",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.FrameView"}},
                    "404": {"description": "尚未收到帧", "schema": {"$ref": "#/definitions/api.StandardResponse"}}
                }
            }
        },
        "/pm": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["查询"],
                "summary": "当前PM缓存",
                "responses": {
                    "200": {"description": "槽位名到数值", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}}
                }
            }
        }
    },
    "definitions": {
        "api.StandardResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {},
                "request_id": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        },
        "api.PermissionRequest": {
            "type": "object",
            "properties": {
                "granted": {"type": "boolean"}
            }
        },
        "api.SendFrameRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "minimum": 0},
                "cmd": {"type": "integer"},
                "data": {"type": "string", "example": "01 02"}
            }
        },
        "api.AxisLimitRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "minimum": 0},
                "cmd": {"type": "integer"},
                "axis": {"type": "integer", "maximum": 255, "minimum": 0},
                "max": {"type": "integer", "maximum": 65535, "minimum": 0},
                "min": {"type": "integer", "maximum": 65535, "minimum": 0}
            }
        },
        "api.FrameView": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "id_hex": {"type": "string"},
                "cmd": {"type": "integer"},
                "command": {"type": "string"},
                "dlc": {"type": "integer"},
                "data": {"type": "string"},
                "collimator": {"type": "boolean"},
                "received_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "elincan API",
	Description:      "CAN-USB 转换器本地控制面：连接管理、收发控制与状态查询",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
