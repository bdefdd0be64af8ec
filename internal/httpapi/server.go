// Package httpapi exposes the service's inbound HTTP surface: the version
// probe and the streaming inference endpoint, built on gin-gonic/gin.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
	"github.com/leoho0722/gpu-delegater/internal/inference/chat"
	"github.com/leoho0722/gpu-delegater/internal/inference/orchestrator"
)

// Runner is the boundary the server drives a request through; satisfied by
// *orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (<-chan chat.Chunk, error)
}

// Server wraps a gin.Engine exposing the delegator's HTTP surface.
type Server struct {
	engine  *gin.Engine
	runner  Runner
	version string
	logger  klog.Logger
}

// inferenceRequest is the POST /api/llm/inference request body.
type inferenceRequest struct {
	Model        string  `json:"model" binding:"required"`
	SystemPrompt string  `json:"system_prompt"`
	UserPrompt   string  `json:"user_prompt" binding:"required"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Runtime      string  `json:"runtime"`
}

// envelope is one newline-delimited JSON chunk of the streamed response.
type envelope struct {
	Status       string `json:"status"`
	Code         int    `json:"code"`
	Chunk        string `json:"chunk,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// versionEnvelope is the GET /api/version response body.
type versionEnvelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewServer builds the gin router. version is echoed by /api/version.
func NewServer(runner Runner, version string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:  gin.New(),
		runner:  runner,
		version: version,
		logger:  klog.NewKlogr().WithName("httpapi"),
	}

	s.engine.Use(gin.Logger(), gin.Recovery())
	s.engine.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/api/version")
	})

	api := s.engine.Group("/api")
	{
		api.GET("/version", s.handleVersion)
		api.POST("/llm/inference", s.handleInference)
	}

	return s
}

// Handler returns the underlying http.Handler, for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, versionEnvelope{Status: "ok", Code: http.StatusOK, Message: s.version})
}

func (s *Server) handleInference(c *gin.Context) {
	var req inferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Status: "failed", Code: http.StatusBadRequest, ErrorMessage: err.Error()})
		return
	}

	runtime := req.Runtime
	if runtime == "" {
		runtime = "ollama"
	}

	chunks, err := s.runner.Run(c.Request.Context(), orchestrator.Request{
		Model:        req.Model,
		Runtime:      runtime,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		s.logger.Info("inference request failed before streaming", "error", err.Error())
		code := statusCodeOf(err)
		c.JSON(code, envelope{Status: "failed", Code: code, ErrorMessage: err.Error()})
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/x-ndjson")
	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			return false
		}
		if chunk.Err != nil {
			writeEnvelope(w, envelope{Status: "failed", Code: statusCodeOf(chunk.Err), ErrorMessage: chunk.Err.Error()})
			return false
		}
		writeEnvelope(w, envelope{Status: "ok", Code: http.StatusOK, Chunk: chunk.Content})
		return !chunk.Done
	})
}

func writeEnvelope(w io.Writer, e envelope) {
	body, err := json.Marshal(e)
	if err != nil {
		return
	}
	w.Write(body)
	w.Write([]byte("\n"))
}

// statusCodeOf maps a dispatch error to the HTTP status the API responds
// with, defaulting to 500 for errors outside the dispatch taxonomy.
func statusCodeOf(err error) int {
	var dispatchErr *gpudispatch.DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.StatusCode
	}
	return http.StatusInternalServerError
}
