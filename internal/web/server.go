package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rainagent/rain/internal/agent"
	"github.com/rainagent/rain/internal/knowledge"
)

// DefaultPort is the default web console port.
const DefaultPort = 8501

// maxPortRetries is the number of ports to try before giving up (8501-8510).
const maxPortRetries = 10

// SessionCookie names the cookie holding the browser session ID.
const SessionCookie = "rain_session"

const maxBodyBytes = 64 << 10

// ErrNotInitialized is returned when chatting before credentials were submitted.
var ErrNotInitialized = errors.New("agent not initialized")

// Options configures the console server.
type Options struct {
	Host       string
	Port       int // 0 means DefaultPort
	SessionTTL time.Duration
	Factory    AgentFactory
	Logger     *slog.Logger
	Version    string
}

// Server is the web console HTTP server.
type Server struct {
	host    string
	port    int
	store   *SessionStore
	factory AgentFactory
	logger  *slog.Logger
	version string
	index   *template.Template
	handler http.Handler
	httpSrv *http.Server

	// done is closed when Shutdown begins so long-lived streams return.
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a web console server with all routes wired.
func New(opts Options) *Server {
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		host:    opts.Host,
		port:    opts.Port,
		store:   NewSessionStore(opts.SessionTTL),
		factory: opts.Factory,
		logger:  opts.Logger,
		version: opts.Version,
		index:   template.Must(template.ParseFS(staticFS, "static/index.html")),
		done:    make(chan struct{}),
	}

	// Serve embedded static assets (CSS, JS).
	staticSub, _ := fs.Sub(staticFS, "static")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/credentials", s.handleCredentials)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/events", s.handleSSE)

	s.handler = requestLogging(s.logger)(mux)
	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpSrv.RegisterOnShutdown(s.closeStreams)
	return s
}

// Handler returns the root handler, including request logging.
func (s *Server) Handler() http.Handler { return s.handler }

// Sessions exposes the session store (for the sweeper).
func (s *Server) Sessions() *SessionStore { return s.store }

// Start begins listening on the configured address. Non-blocking.
// If the port is already in use, it tries consecutive ports up to maxPortRetries.
// If pinned is true (user specified --port explicitly), no auto-increment is attempted.
// Returns the actual port the server is listening on.
func (s *Server) Start(pinned bool) (int, error) {
	tries := maxPortRetries
	if pinned {
		tries = 1
	}

	var lastErr error
	for i := 0; i < tries; i++ {
		port := s.port + i
		addr := net.JoinHostPort(s.host, fmt.Sprint(port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		s.httpSrv.Addr = addr
		go func() {
			if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("web console error", "err", err)
			}
		}()
		return port, nil
	}

	if pinned {
		return 0, fmt.Errorf("web console port %d: %w", s.port, lastErr)
	}
	return 0, fmt.Errorf("web console: no available port in range %d-%d", s.port, s.port+maxPortRetries-1)
}

// Shutdown gracefully stops the server. Open event streams end and running
// chats are cancelled first, since http.Server.Shutdown waits for them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeStreams()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) closeStreams() {
	s.doneOnce.Do(func() { close(s.done) })
}

// cookieID returns the browser's session ID when it carries a well-formed one.
func cookieID(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ensureCookie hands the browser a session ID without storing a session.
func (s *Server) ensureCookie(w http.ResponseWriter, r *http.Request) {
	if _, ok := cookieID(r); !ok {
		setSessionCookie(w, uuid.NewString())
	}
}

// lookup returns the caller's stored session, or an empty one that is not
// kept. Reads never add to the store, so stray requests cannot evict users.
func (s *Server) lookup(r *http.Request) *ChatSession {
	if id, ok := cookieID(r); ok {
		if sess, ok := s.store.Get(id); ok {
			return sess
		}
	}
	return newChatSession("", time.Now())
}

// session returns the caller's stored session, creating it when the browser
// has none or it expired. Only submitting credentials creates sessions.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *ChatSession {
	id, ok := cookieID(r)
	if ok {
		if sess, found := s.store.Get(id); found {
			return sess
		}
	} else {
		id = uuid.NewString()
		setSessionCookie(w, id)
	}
	s.logger.Debug("new browser session", "session", shortID(id))
	return s.store.Create(id)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.ensureCookie(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		UI      knowledge.Copy
		Version string
	}{knowledge.UI(), s.version}
	if err := s.index.Execute(w, data); err != nil {
		s.logger.Error("render index", "err", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"sessions": s.store.Len(),
	})
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	var creds agent.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !creds.Complete() {
		writeError(w, http.StatusBadRequest, knowledge.UI().MissingCredentials)
		return
	}

	a, err := s.factory(creds.Trimmed())
	if err != nil {
		s.logger.Warn("agent init failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sess := s.session(w, r)
	sess.Initialize(a)
	s.logger.Info("agent initialized", "session", shortID(sess.ID()))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     knowledge.UI().Initialized,
		"initialized": true,
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"initialized": sess.Initialized(),
		"messages":    sess.Messages(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(r)

	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}

	// A running agent is abandoned when the server shuts down.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	reply, err := sess.Chat(ctx, req.Message)
	if errors.Is(err, ErrNotInitialized) {
		writeError(w, http.StatusConflict, knowledge.UI().NotInitialized)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reply": reply,
		"error": reply.Error,
	})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	sess := s.lookup(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	events, unsubscribe := sess.Hub().Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, _ := json.Marshal(e)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
