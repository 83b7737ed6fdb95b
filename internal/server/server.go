// Package server exposes the review protocol as a JSON callback endpoint for
// a browser front end.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boshu2/regtest/internal/review"
)

// CallbackPath is the single endpoint every action is posted to.
const CallbackPath = "/callback"

// Server answers review callbacks.
type Server struct {
	svc   *review.Service
	nonce string
	log   *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNonce fixes the nonce instead of generating one.
func WithNonce(n string) Option {
	return func(s *Server) { s.nonce = n }
}

// New creates a server over svc.
func New(svc *review.Service, opts ...Option) *Server {
	s := &Server{
		svc:   svc,
		nonce: strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nonce identifies this server instance to clients.
func (s *Server) Nonce() string {
	return s.nonce
}

// Handler returns the HTTP handler serving the callback endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving review callbacks", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// params reads callback parameters from the query string and, for POST, the
// form body.
type params struct {
	r *http.Request
}

func (p params) get(key string) string {
	return p.r.FormValue(key)
}

func (p params) has(key string) bool {
	_, ok := p.r.Form[key]
	return ok
}

// list splits a parameter on sep, dropping empty items.
func (p params) list(key, sep string) []string {
	var out []string
	for _, v := range strings.Split(p.get(key), sep) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (p params) int(key string) (int, error) {
	v := p.get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s: %v", review.ErrInvalidParam, key, err)
	}
	return n, nil
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p := params{r: r}
	if p.has("n") && p.get("n") != s.nonce {
		http.Error(w, ErrNonce.Error(), http.StatusBadRequest)
		return
	}
	action := p.get("a")
	if action == "" {
		http.Error(w, "parameter a must be passed", http.StatusBadRequest)
		return
	}

	start := time.Now()
	resp, err := s.dispatch(r.Context(), action, p)
	log := s.log.With(zap.String("action", action), zap.String("test", p.get("t")),
		zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		status := statusOf(err)
		msg := err.Error()
		if status == http.StatusPreconditionFailed {
			msg = rerunHint
		}
		if status == http.StatusInternalServerError {
			log.Error("callback failed", zap.Error(err))
		} else {
			log.Debug("callback rejected", zap.Int("status", status), zap.Error(err))
		}
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	log.Debug("callback")
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	_ = enc.Encode(v) //nolint:errcheck // client went away
}
