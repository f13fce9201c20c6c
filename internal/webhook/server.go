// Package webhook serves GitHub App pull_request webhooks and runs the linter for each event.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codex-k8s/ticketlint/internal/githubapi"
	"github.com/codex-k8s/ticketlint/internal/lint"
	"github.com/codex-k8s/ticketlint/internal/logging"
	"github.com/codex-k8s/ticketlint/internal/platform"
)

const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature-256"

	maxPayloadBytes = 25 << 20
)

// lintedActions are the pull_request actions that can change the title or branch.
var lintedActions = map[string]bool{
	"opened":      true,
	"edited":      true,
	"reopened":    true,
	"synchronize": true,
}

// TokenSource issues installation access tokens.
type TokenSource interface {
	InstallationToken(ctx context.Context, installationID int64) (string, error)
}

// ClientFactory returns the collaborator client for one event.
type ClientFactory func(ctx context.Context, ev githubapi.Event) (platform.Client, error)

// AppClients builds gh-backed clients authenticated as the event's app installation.
func AppClients(tokens TokenSource, logger *slog.Logger, opts ...githubapi.Option) ClientFactory {
	return func(ctx context.Context, ev githubapi.Event) (platform.Client, error) {
		if ev.InstallationID == 0 {
			return nil, fmt.Errorf("event has no installation id")
		}
		token, err := tokens.InstallationToken(ctx, ev.InstallationID)
		if err != nil {
			return nil, err
		}
		return githubapi.NewClient(logger, token, opts...)
	}
}

// Options configures a Server.
type Options struct {
	// Secret is the webhook secret used to verify X-Hub-Signature-256.
	Secret string
	// Lint configures the linter run for each event.
	Lint lint.Options
	// Clients builds the collaborator for an event.
	Clients ClientFactory
	// Timeout bounds each event; zero means no bound beyond the request context.
	Timeout time.Duration
	Logger   *slog.Logger
	Reporter *logging.Reporter
}

// Server handles webhook deliveries.
type Server struct {
	secret   []byte
	lint     lint.Options
	clients  ClientFactory
	timeout  time.Duration
	logger   *slog.Logger
	reporter *logging.Reporter
}

// NewServer validates opts and returns a Server.
func NewServer(opts Options) (*Server, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, fmt.Errorf("webhook secret is empty")
	}
	if opts.Clients == nil {
		return nil, fmt.Errorf("client factory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		secret:   []byte(opts.Secret),
		lint:     opts.Lint,
		clients:  opts.Clients,
		timeout:  opts.Timeout,
		logger:   logger,
		reporter: opts.Reporter,
	}, nil
}

// Router exposes the webhook and health endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.HealthCheck)
	r.Post("/webhook/github", s.HandleGitHub)
	return r
}

// HealthCheck reports liveness.
func (s *Server) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type response struct {
	Outcome string   `json:"outcome"`
	Message string   `json:"message,omitempty"`
	Title   string   `json:"title,omitempty"`
	Links   []string `json:"links,omitempty"`
}

// HandleGitHub verifies and processes one GitHub delivery.
func (s *Server) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With("delivery", r.Header.Get(headerDelivery), "event", r.Header.Get(headerEvent))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, response{Outcome: "error", Message: "read body"})
		return
	}
	if !s.validSignature(r.Header.Get(headerSignature), body) {
		log.Warn("webhook signature mismatch")
		s.writeJSON(w, http.StatusUnauthorized, response{Outcome: "error", Message: "invalid signature"})
		return
	}

	if r.Header.Get(headerEvent) != "pull_request" {
		log.Debug("ignoring event")
		s.writeJSON(w, http.StatusOK, response{Outcome: "ignored"})
		return
	}

	ev, err := githubapi.ParsePullRequestEvent(body, "")
	if err != nil {
		log.Warn("bad pull_request payload", "err", err)
		s.writeJSON(w, http.StatusBadRequest, response{Outcome: "error", Message: err.Error()})
		return
	}
	log = log.With("action", ev.Action, "pr", ev.PullRequest.String())
	if !lintedActions[ev.Action] {
		log.Debug("ignoring pull_request action")
		s.writeJSON(w, http.StatusOK, response{Outcome: "ignored"})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	client, err := s.clients(ctx, ev)
	if err != nil {
		s.fail(w, log, ev, fmt.Errorf("build client: %w", err))
		return
	}

	res, err := lint.New(s.lint, client, log).Run(ctx, ev.PullRequest)
	var failure *lint.FailureError
	switch {
	case errors.As(err, &failure):
		log.Info("pull request has no ticket reference", "reason", failure.Reason)
		s.writeJSON(w, http.StatusOK, response{Outcome: "failure", Message: failure.Reason})
	case err != nil:
		s.fail(w, log, ev, err)
	default:
		log.Info("pull request linted", "outcome", res.Outcome, "title", res.Title)
		s.writeJSON(w, http.StatusOK, response{
			Outcome: string(res.Outcome),
			Title:   res.Title,
			Links:   res.Links.Links(),
		})
	}
}

func (s *Server) fail(w http.ResponseWriter, log *slog.Logger, ev githubapi.Event, err error) {
	log.Error("lint run failed", "err", err)
	s.reporter.CaptureError(err, "pr", ev.PullRequest.String(), "action", ev.Action)
	s.writeJSON(w, http.StatusBadGateway, response{Outcome: "error", Message: err.Error()})
}

func (s *Server) validSignature(header string, body []byte) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode JSON response", "err", err)
	}
}

// ListenAndServe runs the server on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          newErrorLog(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down webhook server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
