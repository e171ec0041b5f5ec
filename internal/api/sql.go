package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/auth"
	webcontext "github.com/Julianb233/sierra-fred-carey-sub003/internal/web/context"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/response"
)

const maxBodyBytes = 1 << 20

type handler struct {
	client      *sqlbridge.Client
	logger      *zap.Logger
	authEnabled bool
}

// SQLRequest is the body of POST /v1/sql
type SQLRequest struct {
	Query  string        `json:"query"`
	Params []interface{} `json:"params"`
}

// SQLResponse is the body of a successful POST /v1/sql
type SQLResponse struct {
	Data     []map[string]interface{} `json:"data"`
	Warnings []sqlbridge.Warning      `json:"warnings"`
}

func (h *handler) execSQL(w http.ResponseWriter, r *http.Request) {
	var req SQLRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		response.RenderError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.RenderError(w, http.StatusBadRequest, "query is required")
		return
	}

	if h.authEnabled && webcontext.GetRole(r.Context()) != auth.RoleService &&
		sqlbridge.Classify(req.Query) != ast.KindSelect {
		response.RenderError(w, http.StatusForbidden, "this API key may only run SELECT statements")
		return
	}

	params := make([]interface{}, len(req.Params))
	for i, p := range req.Params {
		params[i] = normalizeParam(p)
	}

	result, err := h.client.Execute(r.Context(), req.Query, params)
	if err != nil {
		status, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("sql request failed",
				zap.String("request_id", webcontext.GetRequestID(r.Context())),
				zap.Error(err))
		}
		response.RenderError(w, status, message)
		return
	}

	response.JSON(w, http.StatusOK, &SQLResponse{Data: result.Rows, Warnings: result.Warnings})
}

// normalizeParam turns json.Number into int64 when integral and float64
// otherwise, descending into arrays and objects
func normalizeParam(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []interface{}:
		for i := range val {
			val[i] = normalizeParam(val[i])
		}
		return val
	case map[string]interface{}:
		for k := range val {
			val[k] = normalizeParam(val[k])
		}
		return val
	default:
		return v
	}
}

// errorStatus maps translator and database errors to an HTTP status and a
// client-safe message
func errorStatus(err error) (int, string) {
	var unsupported *sqlbridge.UnsupportedError
	switch {
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, query.ErrMissingFilter),
		errors.Is(err, query.ErrEmptyPayload),
		errors.Is(err, query.ErrInvalidIdentifier):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, query.ErrUniqueViolation):
		return http.StatusConflict, err.Error()
	case errors.Is(err, query.ErrNotNullViolation),
		errors.Is(err, query.ErrForeignKeyViolation),
		errors.Is(err, query.ErrCheckViolation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "query timed out"
	default:
		return http.StatusInternalServerError, "query failed"
	}
}
