// Package swagger holds the OpenAPI document served under /swagger/.
// Regenerate it with "go generate ./cmd/hydrosim" after changing handler
// annotations; TestDocMatchesAnnotations fails when the two drift.
package swagger

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
                "description": "Returns service health with per-plugin status.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "system"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/server.HealthResponse"
                        }
                    }
                }
            }
        },
        "/insight/policy": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "insight"
                ],
                "summary": "Forecast policy",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/insight.PolicyResponse"
                        }
                    }
                }
            }
        },
        "/insight/ranges": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "insight"
                ],
                "summary": "Optimal ranges",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/insight.RangeResponse"
                            }
                        }
                    }
                }
            }
        },
        "/insight/sample/forecast": {
            "post": {
                "description": "Runs the forecast pipeline on the bundled example dataset in the shared \"sample\" session.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "insight"
                ],
                "summary": "Forecast sample data",
                "parameters": [
                    {
                        "description": "Forecast options",
                        "name": "request",
                        "in": "body",
                        "schema": {
                            "$ref": "#/definitions/insight.ForecastRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/insight.ForecastResult"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            }
        },
        "/insight/sessions": {
            "post": {
                "description": "Normalizes a CSV upload (multipart field \"file\" or a text/csv body) into a new session.",
                "consumes": [
                    "multipart/form-data",
                    "text/csv"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "insight"
                ],
                "summary": "Upload sensor log",
                "parameters": [
                    {
                        "type": "file",
                        "description": "CSV file",
                        "name": "file",
                        "in": "formData"
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/insight.SessionResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    },
                    "413": {
                        "description": "Request Entity Too Large",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    },
                    "415": {
                        "description": "Unsupported Media Type",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            }
        },
        "/insight/sessions/{id}": {
            "get": {
                "description": "Returns metadata, descriptive statistics and daily averages of an upload session.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "insight"
                ],
                "summary": "Get session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/insight.SessionResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "insight"
                ],
                "summary": "Delete session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            }
        },
        "/insight/sessions/{id}/data": {
            "get": {
                "description": "Returns the normalized series as CSV with a datetime column.",
                "produces": [
                    "text/csv"
                ],
                "tags": [
                    "insight"
                ],
                "summary": "Export normalized data",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            }
        },
        "/insight/sessions/{id}/forecast": {
            "post": {
                "description": "Fits (or loads) the forecaster, predicts the horizon and returns chart series, summary and advisories.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "insight"
                ],
                "summary": "Forecast session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Forecast options",
                        "name": "request",
                        "in": "body",
                        "schema": {
                            "$ref": "#/definitions/insight.ForecastRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/insight.ForecastResult"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            }
        },
        "/insight/sessions/{id}/progress": {
            "get": {
                "description": "Upgrades to a WebSocket that streams stage transitions of forecast runs for the session.",
                "tags": [
                    "insight"
                ],
                "summary": "Pipeline progress stream",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "101": {
                        "description": "Switching Protocols"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            }
        },
        "/plugins": {
            "get": {
                "description": "Returns every registered plugin with its enabled state.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "system"
                ],
                "summary": "List plugins",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/registry.Status"
                            }
                        }
                    }
                }
            }
        },
        "/quality/model": {
            "get": {
                "description": "Returns training diagnostics of the loaded classifier.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quality"
                ],
                "summary": "Classifier diagnostics",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/quality.ModelResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            }
        },
        "/quality/predict": {
            "post": {
                "description": "Classifies a single environmental reading as Normal, Ideal or Excessive.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "quality"
                ],
                "summary": "Classify reading",
                "parameters": [
                    {
                        "description": "Sensor reading",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/quality.PredictRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/quality.PredictResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {}
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "analytics.Trend": {
            "type": "object",
            "properties": {
                "current": {
                    "type": "number"
                },
                "days_to_cap": {
                    "type": "number"
                },
                "intercept": {
                    "type": "number"
                },
                "leaves_per_day": {
                    "type": "number"
                },
                "r_squared": {
                    "type": "number"
                }
            }
        },
        "growth.Advisory": {
            "type": "object",
            "properties": {
                "band": {
                    "$ref": "#/definitions/growth.Range"
                },
                "mean": {
                    "type": "number"
                },
                "message": {
                    "type": "string"
                },
                "regressor": {
                    "type": "string"
                }
            }
        },
        "growth.DailyAverage": {
            "type": "object",
            "properties": {
                "date": {
                    "type": "string",
                    "example": "2024-07-01"
                },
                "leaf_count": {
                    "type": "number"
                }
            }
        },
        "growth.ForecastPoint": {
            "type": "object",
            "properties": {
                "cap": {
                    "type": "number"
                },
                "lower": {
                    "type": "number"
                },
                "predicted": {
                    "type": "number"
                },
                "regressors": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "number"
                    }
                },
                "timestamp": {
                    "type": "string",
                    "format": "date-time"
                },
                "upper": {
                    "type": "number"
                }
            }
        },
        "growth.Outlier": {
            "type": "object",
            "properties": {
                "column": {
                    "type": "string"
                },
                "severity": {
                    "type": "string",
                    "enum": [
                        "warning",
                        "critical"
                    ]
                },
                "timestamp": {
                    "type": "string",
                    "format": "date-time"
                },
                "value": {
                    "type": "number"
                },
                "z_score": {
                    "type": "number"
                }
            }
        },
        "growth.Range": {
            "type": "object",
            "properties": {
                "lower": {
                    "type": "number"
                },
                "upper": {
                    "type": "number"
                }
            }
        },
        "growth.Stats": {
            "type": "object",
            "properties": {
                "column": {
                    "type": "string"
                },
                "max": {
                    "type": "number"
                },
                "mean": {
                    "type": "number"
                },
                "min": {
                    "type": "number"
                }
            }
        },
        "growth.Summary": {
            "type": "object",
            "properties": {
                "growth_percent": {
                    "type": "number"
                },
                "horizon_days": {
                    "type": "integer"
                },
                "last_observed": {
                    "type": "number"
                },
                "max_forecast": {
                    "type": "number"
                }
            }
        },
        "insight.ForecastRequest": {
            "type": "object",
            "properties": {
                "cap": {
                    "description": "Cap sets the capacity directly and wins over WeightGrams.",
                    "type": "number",
                    "example": 18
                },
                "mode": {
                    "description": "Mode is \"fit\" (default) or \"pretrained\".",
                    "type": "string",
                    "example": "fit"
                },
                "optimality_window": {
                    "description": "OptimalityWindow is \"history\" (default) or \"forecast\".",
                    "type": "string",
                    "example": "history"
                },
                "periods": {
                    "description": "Periods defaults to the days remaining until the last growth day.",
                    "type": "integer",
                    "example": 14
                },
                "weight_grams": {
                    "description": "WeightGrams picks the capacity from the weight table.",
                    "type": "integer",
                    "example": 100
                }
            }
        },
        "insight.ForecastResult": {
            "type": "object",
            "properties": {
                "advisories": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/growth.Advisory"
                    }
                },
                "cap": {
                    "type": "number"
                },
                "forecast": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/growth.ForecastPoint"
                    }
                },
                "growth_error": {
                    "type": "string"
                },
                "history": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/insight.HistoryPoint"
                    }
                },
                "mode": {
                    "type": "string"
                },
                "optimality_window": {
                    "type": "string"
                },
                "periods": {
                    "type": "integer"
                },
                "session_id": {
                    "type": "string"
                },
                "summary": {
                    "$ref": "#/definitions/growth.Summary"
                },
                "summary_text": {
                    "type": "string"
                },
                "trend": {
                    "$ref": "#/definitions/analytics.Trend"
                }
            }
        },
        "insight.HistoryPoint": {
            "type": "object",
            "properties": {
                "fitted": {
                    "type": "number"
                },
                "lower": {
                    "type": "number"
                },
                "observed": {
                    "type": "number"
                },
                "timestamp": {
                    "type": "string",
                    "format": "date-time"
                },
                "upper": {
                    "type": "number"
                }
            }
        },
        "insight.PolicyResponse": {
            "type": "object",
            "properties": {
                "anchor": {
                    "type": "string"
                },
                "growth": {
                    "type": "string"
                },
                "horizon_max": {
                    "type": "integer"
                },
                "horizon_min": {
                    "type": "integer"
                },
                "interval_width": {
                    "type": "number"
                },
                "max_day": {
                    "type": "integer"
                },
                "modes": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "weights": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/insight.WeightCap"
                    }
                }
            }
        },
        "insight.RangeResponse": {
            "type": "object",
            "properties": {
                "lower": {
                    "type": "number",
                    "example": 25
                },
                "regressor": {
                    "type": "string",
                    "example": "temperature"
                },
                "upper": {
                    "type": "number",
                    "example": 28
                }
            }
        },
        "insight.SessionResponse": {
            "type": "object",
            "properties": {
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "daily_averages": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/growth.DailyAverage"
                    }
                },
                "default_horizon": {
                    "type": "integer"
                },
                "end": {
                    "type": "string",
                    "format": "date-time"
                },
                "id": {
                    "type": "string"
                },
                "outliers": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/growth.Outlier"
                    }
                },
                "rows": {
                    "type": "integer"
                },
                "source": {
                    "type": "string"
                },
                "start": {
                    "type": "string",
                    "format": "date-time"
                },
                "stats": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/growth.Stats"
                    }
                },
                "unique_days": {
                    "type": "integer"
                }
            }
        },
        "insight.WeightCap": {
            "type": "object",
            "properties": {
                "cap": {
                    "type": "number",
                    "example": 18
                },
                "grams": {
                    "type": "integer",
                    "example": 100
                }
            }
        },
        "plugin.HealthStatus": {
            "type": "object",
            "properties": {
                "details": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                }
            }
        },
        "quality.ModelResponse": {
            "type": "object",
            "properties": {
                "features": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "format": {
                    "type": "string"
                },
                "labels": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "report": {
                    "$ref": "#/definitions/quality.Report"
                },
                "rounds": {
                    "type": "integer"
                }
            }
        },
        "quality.PredictRequest": {
            "type": "object",
            "properties": {
                "EC": {
                    "type": "number"
                },
                "TDS": {
                    "type": "number"
                },
                "WaterTemp": {
                    "type": "number"
                },
                "humidity": {
                    "type": "number"
                },
                "light": {
                    "type": "number"
                },
                "pH": {
                    "type": "number"
                },
                "temperature": {
                    "type": "number"
                }
            }
        },
        "quality.PredictResponse": {
            "type": "object",
            "properties": {
                "label": {
                    "type": "string",
                    "enum": [
                        "Normal",
                        "Ideal",
                        "Excessive"
                    ]
                },
                "probabilities": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "number"
                    }
                }
            }
        },
        "quality.Report": {
            "type": "object",
            "properties": {
                "accuracy": {
                    "type": "number"
                },
                "confusion": {
                    "type": "array",
                    "items": {
                        "type": "array",
                        "items": {
                            "type": "integer"
                        }
                    }
                },
                "f1": {
                    "type": "number"
                },
                "labels": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "precision": {
                    "type": "number"
                },
                "recall": {
                    "type": "number"
                },
                "test_size": {
                    "type": "integer"
                },
                "train_size": {
                    "type": "integer"
                }
            }
        },
        "registry.Status": {
            "type": "object",
            "properties": {
                "dependencies": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "description": {
                    "type": "string"
                },
                "disabled_reason": {
                    "type": "string"
                },
                "enabled": {
                    "type": "boolean"
                },
                "name": {
                    "type": "string"
                },
                "required": {
                    "type": "boolean"
                },
                "version": {
                    "type": "string"
                }
            }
        },
        "server.HealthResponse": {
            "type": "object",
            "properties": {
                "plugins": {
                    "type": "object",
                    "additionalProperties": {
                        "$ref": "#/definitions/plugin.HealthStatus"
                    }
                },
                "service": {
                    "type": "string",
                    "example": "hydrosim"
                },
                "status": {
                    "type": "string",
                    "example": "ok"
                },
                "version": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "HydroSim API",
	Description:      "Hydroponic lettuce leaf-count forecasting and growth quality classification.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
