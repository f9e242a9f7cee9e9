package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "github.com/hrygo/bilens/internal/errors"
	"github.com/hrygo/bilens/internal/observability"
	"github.com/hrygo/bilens/internal/profile"
	"github.com/hrygo/bilens/plugin/ai/agent"
	"github.com/hrygo/bilens/plugin/ai/rag"
	servermiddleware "github.com/hrygo/bilens/server/middleware"
)

// DocumentAnswerer answers from the indexed documents.
type DocumentAnswerer interface {
	Answer(ctx context.Context, query string, topK int) (*rag.Result, error)
}

// AgentAnswerer routes a question and blends analytics with documents.
type AgentAnswerer interface {
	Answer(ctx context.Context, query string, topK int) *agent.Answer
}

type APIV1Service struct {
	Profile     *profile.Profile
	Documents   DocumentAnswerer
	Agent       AgentAnswerer
	Metrics     *observability.Metrics
	RateLimiter *servermiddleware.RateLimiter
}

// AskRequest is the body of /ask and /agent_ask.
type AskRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// ErrorResponse is returned for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func NewAPIV1Service(profile *profile.Profile, documents DocumentAnswerer, agent AgentAnswerer, metrics *observability.Metrics) *APIV1Service {
	return &APIV1Service{
		Profile:     profile,
		Documents:   documents,
		Agent:       agent,
		Metrics:     metrics,
		RateLimiter: servermiddleware.NewRateLimiter(servermiddleware.DefaultRate, servermiddleware.DefaultBurst),
	}
}

// RegisterRoutes registers the HTTP endpoints on echoServer.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/health", s.Health)

	askGroup := echoServer.Group("", middleware.CORS(), s.RateLimiter.Middleware())
	askGroup.POST("/ask", s.Ask)
	askGroup.POST("/agent_ask", s.AgentAsk)

	apiGroup := echoServer.Group("/api/v1")
	apiGroup.GET("/metrics", s.GetMetrics)
}

// Health reports liveness.
// GET /health
func (s *APIV1Service) Health(c echo.Context) error {
	resp := map[string]string{"status": "ok"}
	if s.Profile != nil {
		resp["backend"] = s.Profile.RAGBackend
		resp["generator_mode"] = s.Profile.GeneratorMode
	}
	return c.JSON(http.StatusOK, resp)
}

// Ask answers a question from the documents.
// POST /ask
func (s *APIV1Service) Ask(c echo.Context) error {
	req, msg := bindAskRequest(c)
	if req == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: string(apperrors.ErrCodeInvalidArgument)})
	}

	result, err := s.Documents.Answer(c.Request().Context(), req.Query, s.topK(req.TopK))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// AgentAsk routes a question to analytics, documents or both.
// POST /agent_ask
func (s *APIV1Service) AgentAsk(c echo.Context) error {
	req, msg := bindAskRequest(c)
	if req == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: string(apperrors.ErrCodeInvalidArgument)})
	}

	var reqCtx *observability.RequestContext
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		reqCtx = observability.NewRequestContextWithID(nil, id, observability.PipelineAgent)
	} else {
		reqCtx = observability.NewRequestContext(nil, observability.PipelineAgent)
	}
	ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)
	return c.JSON(http.StatusOK, s.Agent.Answer(ctx, req.Query, s.topK(req.TopK)))
}

// GetMetrics returns the pipeline counters.
// GET /api/v1/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	if s.Metrics == nil {
		return c.JSON(http.StatusOK, observability.NewMetrics(0).Snapshot())
	}
	return c.JSON(http.StatusOK, s.Metrics.Snapshot())
}

// bindAskRequest decodes the body. It returns nil and the reason when the
// request is unusable.
func bindAskRequest(c echo.Context) (*AskRequest, string) {
	req := &AskRequest{}
	if err := c.Bind(req); err != nil {
		return nil, "invalid request body"
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, "query is required"
	}
	if req.TopK < 0 {
		return nil, "top_k must not be negative"
	}
	return req, ""
}

// topK falls back to the profile default when the request leaves it unset.
func (s *APIV1Service) topK(requested int) int {
	if requested > 0 || s.Profile == nil {
		return requested
	}
	return s.Profile.TopK
}

func errorResponse(c echo.Context, err error) error {
	code := apperrors.GetCodeFromError(err, apperrors.ErrCodeServiceUnavailable)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case apperrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	case apperrors.ErrCodeVectorBackendUnavailable, apperrors.ErrCodeEmbeddingFailed, apperrors.ErrCodeServiceUnavailable:
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, ErrorResponse{Error: err.Error(), Code: string(code)})
}
