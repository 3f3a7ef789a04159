// Package http exposes the one-shot trigger surface: each request runs
// a named agent synchronously and returns its terminal result.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/finpulse/aicomply/internal/agents"
	"github.com/finpulse/aicomply/internal/domain"
)

// Handler handles HTTP requests.
type Handler struct {
	suite *agents.Suite
	log   zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(suite *agents.Suite, log zerolog.Logger) *Handler {
	return &Handler{suite: suite, log: log}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/agents/:agent/runs", h.RunAgent)
	e.GET("/v1/agents", h.ListAgents)
	e.GET("/healthz", h.Health)
}

// NewServer creates an echo server with the standard middleware stack
// and the handler's routes registered.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	h.RegisterRoutes(e)
	return e
}

type runRequest struct {
	Params map[string]any `json:"params"`
}

type runResponse struct {
	Agent  string                 `json:"agent"`
	Result *domain.TerminalResult `json:"result"`
}

// RunAgent executes the named agent once and returns its terminal
// result. The transcript is included only for failed runs.
func (h *Handler) RunAgent(c echo.Context) error {
	agent := c.Param("agent")

	var req runRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.suite.Run(c.Request().Context(), agent, req.Params)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	if result.Kind == domain.TerminalDone {
		result.Transcript = nil
	}

	h.log.Info().
		Str("agent", agent).
		Str("terminal", string(result.Kind)).
		Int("rounds", result.Rounds).
		Msg("agent run completed")

	return c.JSON(statusFor(result), runResponse{Agent: agent, Result: result})
}

// ListAgents returns the registered agent names.
func (h *Handler) ListAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"agents": agents.Names()})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// statusFor maps a terminal kind to the response status: successful
// runs are 200, retryable backend failures 503, everything else 422.
func statusFor(result *domain.TerminalResult) int {
	switch {
	case result.Kind == domain.TerminalDone:
		return http.StatusOK
	case result.Retryable():
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
