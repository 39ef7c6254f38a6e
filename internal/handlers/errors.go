package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/victoralfred/qrisk/internal/domain/audit"
	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
)

// StatusClientClosedRequest is returned when the caller went away mid-calculation.
const StatusClientClosedRequest = 499

// ErrorResponse is the error member of every failed response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  []portfolio.FieldError `json:"fields,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool          `json:"success"`
	Error   ErrorResponse `json:"error"`
}

func abortWithError(c *gin.Context, status int, body ErrorResponse) {
	c.AbortWithStatusJSON(status, errorEnvelope{Success: false, Error: body})
}

func invalidRequest(c *gin.Context) {
	abortWithError(c, http.StatusBadRequest, ErrorResponse{
		Code:    "INVALID_REQUEST",
		Message: "Request body is not valid JSON for this endpoint",
	})
}

// respondError maps a service error onto a status code and a body that
// carries no internal detail.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var vErr *portfolio.ValidationError
	if errors.As(err, &vErr) {
		abortWithError(c, http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request data",
			Fields:  vErr.Fields,
		})
		return
	}

	if errors.Is(err, audit.ErrHistoryUnavailable) {
		abortWithError(c, http.StatusServiceUnavailable, ErrorResponse{
			Code:    "HISTORY_UNAVAILABLE",
			Message: "Risk history is not available",
		})
		return
	}

	fields := []zap.Field{
		zap.String("request_id", c.GetString("request_id")),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	}

	rErr, ok := risk.AsError(err)
	if !ok {
		logger.Error("unexpected request failure", fields...)
		abortWithError(c, http.StatusInternalServerError, ErrorResponse{
			Code:    string(risk.ErrCalculationFailed),
			Message: "Risk calculation failed",
		})
		return
	}

	switch {
	case rErr.IsInputRelated():
		abortWithError(c, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    string(rErr.Code),
			Message: rErr.Message,
			Details: rErr.Details,
		})
	case rErr.Code == risk.ErrUnsupportedMethod:
		abortWithError(c, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    string(rErr.Code),
			Message: rErr.Message,
		})
	case rErr.Code == risk.ErrCanceled:
		logger.Info("client abandoned request", fields...)
		abortWithError(c, StatusClientClosedRequest, ErrorResponse{
			Code:    string(rErr.Code),
			Message: "Request was canceled before the calculation finished",
		})
	case rErr.Code == risk.ErrTimeout:
		logger.Warn("risk calculation timed out", fields...)
		abortWithError(c, http.StatusGatewayTimeout, ErrorResponse{
			Code:    string(rErr.Code),
			Message: "Risk calculation timed out",
		})
	case rErr.Code == risk.ErrMarketDataUnavailable:
		logger.Error("market data unavailable", fields...)
		abortWithError(c, http.StatusServiceUnavailable, ErrorResponse{
			Code:    string(rErr.Code),
			Message: "Market data is temporarily unavailable",
		})
	default:
		logger.Error("risk calculation failed", append(fields, zap.String("code", string(rErr.Code)))...)
		abortWithError(c, http.StatusInternalServerError, ErrorResponse{
			Code:    string(risk.ErrCalculationFailed),
			Message: "Risk calculation failed",
		})
	}
}
