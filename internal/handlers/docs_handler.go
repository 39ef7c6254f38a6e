package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DocsHandler handles API documentation endpoints
type DocsHandler struct {
	version string
}

// NewDocsHandler creates a new documentation handler
func NewDocsHandler(version string) *DocsHandler {
	return &DocsHandler{version: version}
}

// SwaggerSpec represents the OpenAPI specification structure
type SwaggerSpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       SwaggerInfo            `json:"info"`
	Paths      map[string]interface{} `json:"paths"`
	Components SwaggerComponents      `json:"components"`
}

// SwaggerInfo represents the API information
type SwaggerInfo struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// SwaggerComponents represents the reusable components
type SwaggerComponents struct {
	SecuritySchemes map[string]interface{} `json:"securitySchemes"`
	Schemas         map[string]interface{} `json:"schemas"`
}

type object = map[string]interface{}

// GetSwaggerJSON returns the OpenAPI specification in JSON format
func (h *DocsHandler) GetSwaggerJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.generateSwaggerSpec())
}

// GetSwaggerUI returns the Swagger UI HTML page
func (h *DocsHandler) GetSwaggerUI(c *gin.Context) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>qrisk API Documentation - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@4.15.5/swagger-ui.css" />
    <style>
        .swagger-ui .topbar { display: none; }
        body { margin: 0; padding: 20px; background: #fafafa; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4.15.5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '/docs/swagger.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                tryItOutEnabled: true,
                supportedSubmitMethods: ['get', 'post']
            });
        };
    </script>
</body>
</html>`

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, html)
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func jsonBody(schema object) object {
	return object{
		"required": true,
		"content":  object{"application/json": object{"schema": schema}},
	}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content":     object{"application/json": object{"schema": schema}},
	}
}

func errorResponse(description string) object {
	return jsonResponse(description, ref("Error"))
}

var bearer = []object{{"bearerAuth": []string{}}}

// generateSwaggerSpec creates the complete OpenAPI specification
func (h *DocsHandler) generateSwaggerSpec() SwaggerSpec {
	return SwaggerSpec{
		OpenAPI: "3.0.0",
		Info: SwaggerInfo{
			Title:       "qrisk API",
			Version:     h.version,
			Description: "Portfolio risk analytics: Value at Risk, stress testing, allocation optimisation and risk history.",
		},
		Paths: map[string]interface{}{
			"/health": object{
				"get": object{
					"summary":   "Health check",
					"tags":      []string{"System"},
					"responses": object{"200": jsonResponse("Service health", ref("Health"))},
				},
			},
			"/api/portfolio/var": object{
				"post": object{
					"summary":     "Calculate Value at Risk",
					"description": "Validates the portfolio, serves cached metrics when available and computes them otherwise.",
					"tags":        []string{"Risk"},
					"security":    bearer,
					"requestBody": jsonBody(ref("VaRRequest")),
					"responses": object{
						"200": jsonResponse("Risk metrics", ref("RiskMetricsResponse")),
						"400": errorResponse("Validation error or malformed JSON"),
						"401": errorResponse("Missing or invalid token"),
						"422": errorResponse("Insufficient market data or unknown symbol"),
						"429": errorResponse("Rate limit exceeded"),
						"500": errorResponse("Calculation failed"),
						"503": errorResponse("Market data unavailable"),
						"504": errorResponse("Calculation timed out"),
					},
				},
			},
			"/api/portfolio/stress-test": object{
				"post": object{
					"summary":     "Run stress scenarios",
					"tags":        []string{"Risk"},
					"security":    bearer,
					"requestBody": jsonBody(ref("StressTestRequest")),
					"responses": object{
						"200": jsonResponse("Scenario impacts", object{"type": "object"}),
						"400": errorResponse("Validation error"),
						"401": errorResponse("Missing or invalid token"),
					},
				},
			},
			"/api/portfolio/optimize": object{
				"post": object{
					"summary":     "Optimise portfolio weights",
					"tags":        []string{"Optimization"},
					"security":    bearer,
					"requestBody": jsonBody(ref("OptimizationRequest")),
					"responses": object{
						"200": jsonResponse("Optimal allocation", ref("OptimizationResponse")),
						"400": errorResponse("Validation error"),
						"401": errorResponse("Missing or invalid token"),
						"422": errorResponse("Insufficient market data or unknown symbol"),
					},
				},
			},
			"/api/portfolio/{portfolio_id}/history": object{
				"get": object{
					"summary":  "Risk history",
					"tags":     []string{"Risk"},
					"security": bearer,
					"parameters": []object{
						{"name": "portfolio_id", "in": "path", "required": true, "schema": object{"type": "string"}},
						{"name": "days", "in": "query", "schema": object{"type": "integer", "minimum": 1, "maximum": 365, "default": 30}},
					},
					"responses": object{
						"200": jsonResponse("Recorded VaR calculations", object{"type": "object"}),
						"400": errorResponse("Validation error"),
						"503": errorResponse("History store not available"),
					},
				},
			},
		},
		Components: SwaggerComponents{
			SecuritySchemes: map[string]interface{}{
				"bearerAuth": object{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
			Schemas: map[string]interface{}{
				"Position": object{
					"type":     "object",
					"required": []string{"symbol", "weight"},
					"properties": object{
						"symbol":       object{"type": "string", "pattern": "^[A-Z]{1,10}$"},
						"weight":       object{"type": "number", "minimum": 0, "maximum": 1},
						"market_value": object{"type": "number"},
						"quantity":     object{"type": "number"},
					},
				},
				"PortfolioRequest": object{
					"type":     "object",
					"required": []string{"portfolio_id", "positions"},
					"properties": object{
						"portfolio_id":  object{"type": "string"},
						"name":          object{"type": "string"},
						"base_currency": object{"type": "string", "default": "USD"},
						"positions":     object{"type": "array", "items": ref("Position")},
					},
				},
				"RiskParams": object{
					"type": "object",
					"properties": object{
						"confidence_level": object{"type": "number", "minimum": 0.9, "maximum": 0.999, "default": 0.95},
						"time_horizon":     object{"type": "integer", "minimum": 1, "maximum": 252, "default": 1},
						"method":           object{"type": "string", "enum": []string{"historical", "parametric", "monte_carlo", "quantum_mc"}},
						"num_simulations":  object{"type": "integer", "minimum": 1000, "maximum": 100000, "default": 10000},
						"risk_free_rate":   object{"type": "number", "minimum": 0, "maximum": 0.1, "default": 0.02},
					},
				},
				"VaRRequest": object{
					"type": "object",
					"properties": object{
						"portfolio_request": ref("PortfolioRequest"),
						"risk_params":       ref("RiskParams"),
					},
				},
				"StressTestRequest": object{
					"type": "object",
					"properties": object{
						"portfolio_request": ref("PortfolioRequest"),
						"scenarios": object{
							"type":                 "object",
							"additionalProperties": object{"type": "object", "additionalProperties": object{"type": "number", "minimum": -1}},
						},
					},
				},
				"OptimizationRequest": object{
					"type":     "object",
					"required": []string{"symbols", "expected_returns"},
					"properties": object{
						"symbols":             object{"type": "array", "items": object{"type": "string"}},
						"expected_returns":    object{"type": "array", "items": object{"type": "number"}},
						"risk_aversion":       object{"type": "number", "minimum": 0.1, "maximum": 10},
						"optimization_method": object{"type": "string", "enum": []string{"classical_mv", "risk_parity", "quantum_inspired"}},
						"constraints": object{
							"type": "object",
							"properties": object{
								"min_weight": object{"type": "number"},
								"max_weight": object{"type": "number"},
							},
						},
					},
				},
				"OptimizationResponse": object{
					"type": "object",
					"properties": object{
						"optimization_id": object{"type": "string", "format": "uuid"},
						"timestamp":       object{"type": "string", "format": "date-time"},
						"optimal_weights": object{
							"type":        "array",
							"items":       object{"type": "number"},
							"description": "Weights in the order of the request symbols",
						},
						"expected_return":       object{"type": "number"},
						"volatility":            object{"type": "number"},
						"sharpe_ratio":          object{"type": "number"},
						"optimization_method":   object{"type": "string"},
						"convergence_info":      object{"type": "object"},
						"constraints_satisfied": object{"type": "boolean"},
					},
				},
				"RiskMetricsResponse": object{
					"type": "object",
					"properties": object{
						"calculation_id":      object{"type": "string", "format": "uuid"},
						"timestamp":           object{"type": "string", "format": "date-time"},
						"portfolio_id":        object{"type": "string"},
						"risk_metrics":        object{"type": "object"},
						"methodology":         object{"type": "object"},
						"warnings":            object{"type": "array", "items": object{"type": "string"}},
						"computation_time_ms": object{"type": "number"},
						"from_cache":          object{"type": "boolean"},
					},
				},
				"Health": object{
					"type": "object",
					"properties": object{
						"status":          object{"type": "string", "enum": []string{"healthy", "degraded"}},
						"database_status": object{"type": "string"},
						"redis_status":    object{"type": "string"},
						"engine_status":   object{"type": "string"},
					},
				},
				"Error": object{
					"type": "object",
					"properties": object{
						"success": object{"type": "boolean"},
						"error": object{
							"type": "object",
							"properties": object{
								"code":    object{"type": "string"},
								"message": object{"type": "string"},
								"fields":  object{"type": "array", "items": object{"type": "object"}},
							},
						},
					},
				},
			},
		},
	}
}
