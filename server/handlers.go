// Package server exposes the Bedrock agent over HTTP. It implements the
// liveness endpoint, the direct agent invocation endpoint, and the
// declarative endpoint that routes input through the capability router.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/moraine-llm/moraine/errors"
	"github.com/moraine-llm/moraine/server/middleware"
)

// Agent is the invocation dependency of the HTTP handlers. Invocation
// failures from the remote service arrive already degraded to text;
// only unexpected errors are returned as errors.
type Agent interface {
	InvokeText(ctx context.Context, userInput, systemPrompt string) (string, error)
	ModelID() string
}

// CapabilityRouter dispatches input through a capability-specific prompt
// template. It never fails; errors come back as chat-style text.
type CapabilityRouter interface {
	Process(ctx context.Context, userInput string) string
}

// AgentRequest is the body accepted by the invocation endpoints. Input is
// a pointer so a missing field can be told apart from an empty string.
type AgentRequest struct {
	Input        *string `json:"input"`
	SystemPrompt string  `json:"system_prompt"`
}

// AgentResponse is the success body of the invocation endpoints.
type AgentResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthHandler reports service liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:  "healthy",
		Message: "Bedrock agent API is running",
	})
}

// decodeAgentRequest parses and validates the request body shared by the
// invocation endpoints. On failure it writes the error response and
// returns false.
func decodeAgentRequest(w http.ResponseWriter, r *http.Request) (AgentRequest, bool) {
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.NewValidationError(
			middleware.GetRequestID(r.Context()),
			"Missing required 'input' field",
		))
		return req, false
	}
	if req.Input == nil {
		errors.WriteError(w, errors.NewValidationError(
			middleware.GetRequestID(r.Context()),
			"Missing required 'input' field",
		))
		return req, false
	}
	return req, true
}

// AgentHandler handles direct invocations of the Bedrock agent.
type AgentHandler struct {
	agent         Agent
	defaultPrompt string
	logger        *zap.Logger
}

// NewAgentHandler creates the handler for the simple-agent endpoint.
func NewAgentHandler(a Agent, defaultPrompt string, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		agent:         a,
		defaultPrompt: defaultPrompt,
		logger:        logger,
	}
}

// ServeHTTP implements http.Handler. Remote invocation failures arrive as
// degraded text and are relayed with a 200; only unexpected errors become
// a 500 with the error's message.
func (h *AgentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAgentRequest(w, r)
	if !ok {
		return
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = h.defaultPrompt
	}

	requestID := middleware.GetRequestID(r.Context())
	logger := h.logger.With(
		zap.String("request_id", requestID),
		zap.String("path", r.URL.Path),
	)
	logger.Info("Processing request", zap.Int("input_length", len(*req.Input)))

	response, err := h.agent.InvokeText(r.Context(), *req.Input, systemPrompt)
	if err != nil {
		errors.LogError(logger, err, requestID)
		errors.WriteError(w, errors.NewInternalError(requestID, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(AgentResponse{
		Response: response,
		Model:    h.agent.ModelID(),
	}); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// DeclarativeHandler handles invocations routed through the capability
// router.
type DeclarativeHandler struct {
	router CapabilityRouter
	agent  Agent
	logger *zap.Logger
}

// NewDeclarativeHandler creates the handler for the declarative-agent
// endpoint.
func NewDeclarativeHandler(router CapabilityRouter, a Agent, logger *zap.Logger) *DeclarativeHandler {
	return &DeclarativeHandler{
		router: router,
		agent:  a,
		logger: logger,
	}
}

// ServeHTTP implements http.Handler. The capability router degrades every
// failure into text, so this endpoint only returns non-200 for invalid
// request bodies.
func (h *DeclarativeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAgentRequest(w, r)
	if !ok {
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	h.logger.Info("Processing routed request",
		zap.String("request_id", requestID),
		zap.Int("input_length", len(*req.Input)),
	)

	response := h.router.Process(r.Context(), *req.Input)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(AgentResponse{
		Response: response,
		Model:    h.agent.ModelID(),
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
