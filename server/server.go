// Package server exposes the care-coordination assistant over HTTP: session
// bootstrap against the contextual patient API, synchronous chat and an
// SSE-streamed chat variant.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/dispatch"
	"github.com/hupe1980/caremesh/logging"
	"github.com/hupe1980/caremesh/session"
)

// ChatRunner is the dispatch surface the server depends on. *dispatch.Dispatcher
// satisfies it; tests substitute a stub.
type ChatRunner interface {
	Run(ctx context.Context, sessionID, message string, reset bool) (string, error)
	RunStream(ctx context.Context, sessionID, message string, reset bool) (<-chan dispatch.Chunk, error)
}

// Options configure the HTTP server.
type Options struct {
	// ContextualAPIURL is the base URL of the patient record service; the
	// patient id is appended as a path segment.
	ContextualAPIURL string
	// PatientFetchTimeout bounds the contextual API call.
	PatientFetchTimeout time.Duration
	HTTPClient          *http.Client
	Logger              logging.Logger
}

// Server wires the HTTP routes to the dispatcher and session store.
type Server struct {
	runner ChatRunner
	store  session.Store
	opts   Options
	engine *gin.Engine
}

// SessionStartRequest starts a session for a known patient.
type SessionStartRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
}

// SessionStartResponse returns the minted session id and patient identity.
type SessionStartResponse struct {
	SessionID   string `json:"session_id"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
}

// ChatRequest carries one user message.
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
	Reset     bool   `json:"reset"`
}

// New constructs the server and registers all routes.
func New(runner ChatRunner, store session.Store, optFns ...func(o *Options)) *Server {
	opts := Options{
		ContextualAPIURL:    "http://localhost:5000/patient",
		PatientFetchTimeout: 5 * time.Second,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.PatientFetchTimeout}
	}

	s := &Server{runner: runner, store: store, opts: opts}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthcheck", s.handleHealthcheck)
	engine.POST("/api/session/start", s.handleSessionStart)
	engine.POST("/api/chat", s.handleChat)
	engine.POST("/api/chat/stream", s.handleChatStream)
	s.engine = engine

	return s
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run starts the HTTP listener and blocks.
func (s *Server) Run(addr string) error { return s.engine.Run(addr) }

func (s *Server) handleHealthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSessionStart validates the patient id against the contextual API,
// mints a session id and seeds the session with the patient record.
func (s *Server) handleSessionStart(c *gin.Context) {
	var req SessionStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "patient_id is required"})
		return
	}

	record, err := s.fetchPatient(c.Request.Context(), req.PatientID)
	if err != nil {
		switch err := err.(type) {
		case *patientNotFoundError:
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid patient_id or patient not found"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"detail": fmt.Sprintf("Upstream error fetching patient data: %v", err)})
		}
		return
	}

	sessionID := core.NewID()
	if err := s.store.InjectContext(sessionID, map[string]any{"patient_context": record}, true); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to initialize session context"})
		return
	}

	name, _ := record["name"].(string)
	s.opts.Logger.Info("server.session.started", "session_id", sessionID, "patient_id", req.PatientID)
	c.JSON(http.StatusOK, SessionStartResponse{
		SessionID:   sessionID,
		PatientID:   req.PatientID,
		PatientName: name,
	})
}

type patientNotFoundError struct{ status int }

func (e *patientNotFoundError) Error() string {
	return fmt.Sprintf("patient lookup returned status %d", e.status)
}

// fetchPatient retrieves the patient record from the contextual API.
func (s *Server) fetchPatient(ctx context.Context, patientID string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PatientFetchTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s", s.opts.ContextualAPIURL, patientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &patientNotFoundError{status: resp.StatusCode}
	}

	var record map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding patient record: %w", err)
	}
	return record, nil
}

// handleChat runs one synchronous turn and returns the final reply.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
		return
	}

	reply, err := s.runner.Run(c.Request.Context(), req.SessionID, req.Message, req.Reset)
	if err != nil {
		s.opts.Logger.Error("server.chat.error", "session_id", req.SessionID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// handleChatStream runs one turn and replays the reply as Server-Sent Events.
// Every event is a JSON object ({"content": ...} or {"error": ...}) and the
// stream always terminates with the [DONE] sentinel.
func (s *Server) handleChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	chunks, err := s.runner.RunStream(c.Request.Context(), req.SessionID, req.Message, req.Reset)
	if err != nil {
		s.opts.Logger.Error("server.chat_stream.error", "session_id", req.SessionID, "error", err.Error())
		writeSSE(c.Writer, map[string]any{"error": err.Error()})
		writeDone(c.Writer)
		return
	}

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			writeDone(c.Writer)
			return false
		}
		if chunk.Err != nil {
			writeSSE(c.Writer, map[string]any{"error": chunk.Err.Error()})
			writeDone(c.Writer)
			return false
		}
		writeSSE(c.Writer, map[string]any{"content": chunk.Token})
		return true
	})
}

func writeSSE(w io.Writer, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", raw)
}

func writeDone(w io.Writer) {
	io.WriteString(w, "data: [DONE]\n\n")
}
