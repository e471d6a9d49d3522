package http

import (
	"errors"
	"net/http"
	"strconv"

	"vigil/internal/domain"
	"vigil/internal/usecase"

	"github.com/gin-gonic/gin"
)

const defaultEventLimit = 50

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type generateRequest struct {
	SessionID string            `json:"session_id"`
	Prompt    string            `json:"prompt"`
	Size      string            `json:"size,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

type generateResponse struct {
	ID           string       `json:"id"`
	ProviderUsed string       `json:"provider_used"`
	URL          string       `json:"url"`
	DriftScore   *float64     `json:"drift_score"`
	DriftMethod  string       `json:"drift_method"`
	Meta         generateMeta `json:"meta"`
}

type generateMeta struct {
	ReferenceUsed  bool  `json:"reference_used"`
	FailedAttempts int   `json:"failed_attempts"`
	LatencyMS      int64 `json:"latency_ms"`
}

type attemptFailure struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Prompt == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "prompt is required")
		return
	}
	if !s.enforceRateLimit(c, routeImageGenerate, req.SessionID) {
		return
	}

	exec := s.generate
	if req.Provider != "" {
		provider, err := s.registry.Get(req.Provider)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "UNKNOWN_PROVIDER", err.Error())
			return
		}
		deps := s.pipeline
		deps.Router = usecase.NewProviderRouter([]domain.ImageProvider{provider}, s.cfg.ProviderTimeout())
		exec = usecase.NewGenerateImage(deps)
	}

	res, err := exec.Execute(c.Request.Context(), domain.GenerationRequest{
		SessionID: req.SessionID,
		Prompt:    req.Prompt,
		Size:      req.Size,
		Params:    req.Params,
	})
	if err != nil {
		var denied *usecase.PolicyDeniedError
		if errors.As(err, &denied) {
			c.JSON(http.StatusForbidden, errorResponse{
				Code:    "POLICY_DENIED",
				Message: "request denied by prompt admission policy",
				Details: map[string]any{
					"deny":        denied.Evaluation.Result.Deny,
					"bundle_hash": denied.Evaluation.BundleHash,
				},
			})
			return
		}
		var exhausted *usecase.ExhaustedError
		if errors.As(err, &exhausted) {
			c.JSON(http.StatusBadGateway, errorResponse{
				Code:    "ALL_PROVIDERS_EXHAUSTED",
				Message: "all providers exhausted",
				Details: map[string]any{
					"failures": buildFailures(exhausted.Failures),
				},
			})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, generateResponse{
		ID:           res.ID,
		ProviderUsed: res.Provider,
		URL:          res.URL,
		DriftScore:   res.Drift.ValuePtr(),
		DriftMethod:  string(res.Drift.Method),
		Meta: generateMeta{
			ReferenceUsed:  res.ReferenceUsed,
			FailedAttempts: len(res.Failures),
			LatencyMS:      res.Latency.Milliseconds(),
		},
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

type metricsResetRequest struct {
	AlsoBuckets bool `json:"also_buckets"`
}

func (s *Server) handleMetricsReset(c *gin.Context) {
	var req metricsResetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
	}
	before, after := s.metrics.Reset(req.AlsoBuckets)
	c.JSON(http.StatusOK, gin.H{"before": before, "after": after})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	events := s.events.Query(c.Query("kind"), limit)
	if events == nil {
		events = []domain.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handlePulseReset(c *gin.Context) {
	if s.pulse == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	result := s.pulse.Reset()
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

func buildFailures(failures []domain.ProviderFailure) []attemptFailure {
	out := make([]attemptFailure, 0, len(failures))
	for _, f := range failures {
		out = append(out, attemptFailure{Provider: f.Provider, Reason: f.Reason})
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration):
		status, code = http.StatusBadRequest, "INVALID_CONFIGURATION"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrAllProvidersExhausted):
		status, code = http.StatusBadGateway, "ALL_PROVIDERS_EXHAUSTED"
	case errors.Is(err, domain.ErrReferenceUnavailable):
		status, code = http.StatusServiceUnavailable, "REFERENCE_UNAVAILABLE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
