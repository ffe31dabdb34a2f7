// Package docs 控制接口的 Swagger 文档，由 gin-swagger 在 /swagger 下提供
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/load": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["电子负载"],
                "summary": "读取负载状态",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/device.Snapshot"}},
                    "502": {"description": "设备拒绝或应答无效"},
                    "503": {"description": "通道已关闭"},
                    "504": {"description": "应答超时"}
                }
            }
        },
        "/api/v1/load/latest": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["电子负载"],
                "summary": "最近一次采样",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sampler.Reading"}},
                    "404": {"description": "暂无采样"}
                }
            }
        },
        "/api/v1/load/on": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["电子负载"],
                "summary": "开启负载输入",
                "responses": {"200": {"description": "OK"}, "429": {"description": "请求过于频繁"}}
            }
        },
        "/api/v1/load/off": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["电子负载"],
                "summary": "安全关闭负载输入",
                "responses": {"200": {"description": "OK"}, "500": {"description": "safety=true 表示无法确认关闭"}}
            }
        },
        "/api/v1/load/current": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "tags": ["电子负载"],
                "summary": "设定电流",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/api.valueRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "参数错误"}}
            }
        },
        "/api/v1/load/cutoff": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "tags": ["电子负载"],
                "summary": "设定截止电压",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/api.valueRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "参数错误"}}
            }
        },
        "/api/v1/load/timer": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "tags": ["电子负载"],
                "summary": "设定定时",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/api.timerRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "参数错误"}}
            }
        },
        "/api/v1/load/counters/reset": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["电子负载"],
                "summary": "清零累计",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/load/history": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["电子负载"],
                "summary": "缓存中的最近采样",
                "parameters": [{"type": "integer", "description": "条数（默认60）", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "未启用 Redis"}}
            }
        },
        "/api/v1/load/readings": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["电子负载"],
                "summary": "历史采样",
                "parameters": [{"type": "integer", "description": "条数（默认100）", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "未启用数据库"}}
            }
        },
        "/api/v1/load/runs": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["电子负载"],
                "summary": "放电曲线执行记录",
                "parameters": [{"type": "integer", "description": "条数（默认50）", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "未启用数据库"}}
            }
        },
        "/api/v1/load/runs/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["电子负载"],
                "summary": "单条放电曲线执行记录",
                "parameters": [{"type": "string", "description": "执行ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "ID 格式错误"}, "404": {"description": "记录不存在或未启用数据库"}}
            }
        },
        "/api/v1/load/stream": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["电子负载"],
                "summary": "实时读数推送（websocket）",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        }
    },
    "definitions": {
        "api.valueRequest": {
            "type": "object",
            "required": ["value"],
            "properties": {"value": {"type": "number", "minimum": 0, "maximum": 255}}
        },
        "api.timerRequest": {
            "type": "object",
            "required": ["seconds"],
            "properties": {"seconds": {"type": "integer", "minimum": 0}}
        },
        "device.Snapshot": {
            "type": "object",
            "properties": {
                "device": {"type": "string"},
                "taken_at": {"type": "string"},
                "enabled": {"type": "boolean"},
                "voltage": {"type": "number"},
                "current": {"type": "number"},
                "elapsed_seconds": {"type": "integer"},
                "capacity_mah": {"type": "integer"},
                "energy_mwh": {"type": "integer"},
                "temperature_c": {"type": "integer"},
                "current_setting": {"type": "number"},
                "cutoff_voltage": {"type": "number"},
                "timer_seconds": {"type": "integer"}
            }
        },
        "sampler.Reading": {
            "allOf": [
                {"$ref": "#/definitions/device.Snapshot"},
                {"type": "object", "properties": {"run_id": {"type": "string"}}}
            ]
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo 文档元信息
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "电子负载控制服务",
	Description:      "串口电子负载的控制、采样与安全关断接口",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
