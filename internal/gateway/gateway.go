// Package gateway is the HTTP surface of semgate. It authenticates
// requests, decodes query payloads, hands them to the pipeline, and
// renders results and errors as JSON. All query semantics live in the
// pipeline; the gateway stays thin.
package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/semgate-labs/semgate/internal/auth"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/observability"
	"github.com/semgate-labs/semgate/internal/pipeline"
	"github.com/semgate-labs/semgate/internal/sqlbuilder"
	"github.com/semgate-labs/semgate/pkg/api"
	"github.com/semgate-labs/semgate/pkg/models"
)

// Gateway is the HTTP handler for the semgate API.
type Gateway struct {
	authenticator auth.Authenticator
	pipeline      *pipeline.Pipeline
	stats         observability.StatsEmitter
	mux           *http.ServeMux
	version       string
}

// New creates a gateway. The authenticator and pipeline are mandatory.
func New(authenticator auth.Authenticator, pl *pipeline.Pipeline, stats observability.StatsEmitter, version string) (*Gateway, error) {
	if authenticator == nil {
		return nil, errors.NewConfig("gateway: authenticator is required")
	}
	if pl == nil {
		return nil, errors.NewConfig("gateway: pipeline is required")
	}
	if stats == nil {
		stats = observability.NewNoopEmitter()
	}

	g := &Gateway{
		authenticator: authenticator,
		pipeline:      pl,
		stats:         stats,
		mux:           http.NewServeMux(),
		version:       version,
	}
	g.mux.HandleFunc(api.EndpointQuery, g.handleQuery)
	g.mux.HandleFunc(api.EndpointQueryRaw, g.handleRawQuery)
	g.mux.HandleFunc(api.EndpointValidate, g.handleValidate)
	g.mux.HandleFunc(api.EndpointStats, g.handleStats)
	g.mux.HandleFunc(api.EndpointHealth, g.handleHealth)
	g.mux.HandleFunc(api.EndpointReady, g.handleReady)
	return g, nil
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.NewValidation("method %s not allowed", r.Method))
		return
	}

	tc, ok := g.authenticate(w, r)
	if !ok {
		return
	}

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.NewValidation("invalid request body: %v", err))
		return
	}

	resp, err := g.pipeline.Query(r.Context(), tc, &req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleRawQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.NewValidation("method %s not allowed", r.Method))
		return
	}

	tc, ok := g.authenticate(w, r)
	if !ok {
		return
	}

	var req models.RawQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.NewValidation("invalid request body: %v", err))
		return
	}

	resp, err := g.pipeline.RawQuery(r.Context(), tc, &req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleValidate checks a raw statement without executing it.
func (g *Gateway) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.NewValidation("method %s not allowed", r.Method))
		return
	}

	if _, ok := g.authenticate(w, r); !ok {
		return
	}

	var req struct {
		SQL    string `json:"sql"`
		Engine string `json:"engine"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.NewValidation("invalid request body: %v", err))
		return
	}

	if err := sqlbuilder.Validate(req.SQL, sqlbuilder.DialectFor(req.Engine)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	tc, ok := g.authenticate(w, r)
	if !ok {
		return
	}
	if tc.Role != auth.RoleAdmin {
		writeError(w, http.StatusForbidden, errors.New(errors.KindForbidden, "stats require the admin role"))
		return
	}
	writeJSON(w, http.StatusOK, g.stats.Summary())
}

// handleHealth is the liveness probe: the process is up.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": g.version,
	})
}

// handleReady is the readiness probe: every live adapter must answer its
// health check.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	status := g.pipeline.Health(r.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// authenticate resolves the bearer credential to a tenant context,
// writing the error response itself on failure.
func (g *Gateway) authenticate(w http.ResponseWriter, r *http.Request) (auth.TenantContext, bool) {
	credential := r.Header.Get(api.HeaderAuthorization)
	credential = strings.TrimPrefix(credential, "Bearer ")
	if credential == "" {
		writeError(w, http.StatusUnauthorized, errors.New(errors.KindAuthRequired, "missing Authorization header"))
		return auth.TenantContext{}, false
	}

	tc, err := g.authenticator.Authenticate(r.Context(), credential)
	if err != nil {
		writeError(w, statusFor(err), err)
		return auth.TenantContext{}, false
	}
	return tc, true
}

// statusFor maps gateway error kinds to HTTP status codes.
func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindValidation, errors.KindDimensionUnknown, errors.KindMeasureUnknown,
		errors.KindPlan, errors.KindBuild:
		return http.StatusBadRequest
	case errors.KindAuthRequired:
		return http.StatusUnauthorized
	case errors.KindForbidden:
		return http.StatusForbidden
	case errors.KindDatasetNotFound:
		return http.StatusNotFound
	case errors.KindTimeout, errors.KindCoalesceTimeout:
		return http.StatusGatewayTimeout
	case errors.KindConnection, errors.KindCacheUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	resp := models.ErrorResponse{
		Code:    string(errors.KindOf(err)),
		Message: err.Error(),
	}
	var ge *errors.GatewayError
	if e, ok := err.(*errors.GatewayError); ok {
		ge = e
	}
	if ge != nil {
		resp.Message = ge.Message
		resp.Hint = ge.Hint
		resp.RequestID = ge.RequestID
	}
	writeJSON(w, code, resp)
}
