// Package server provides the login-gated web UI and JSON API.
package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/appenmapper/appenmapper/pkg/auth"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/job"
	"github.com/appenmapper/appenmapper/pkg/logging"
	"github.com/appenmapper/appenmapper/pkg/mapping"
	"github.com/appenmapper/appenmapper/pkg/writer"
)

//go:embed templates/*.html
var templatesFS embed.FS

// SessionCookie names the cookie carrying the session token.
const SessionCookie = "appenmapper_session"

// Options configures a Server.
type Options struct {
	Title          string
	Version        string
	PreviewRows    int
	MaxUploadBytes int64
	RunTTL         time.Duration
	FileName       string
	Writer         writer.Config
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Title:          "appen-mapper",
		PreviewRows:    20,
		MaxUploadBytes: 200 << 20,
		RunTTL:         time.Hour,
		FileName:       writer.DefaultFileName,
		Writer:         writer.DefaultConfig(),
	}
}

// Server handles HTTP requests for the web UI.
type Server struct {
	opts   Options
	runner *job.Runner
	gate   *auth.Gate
	runs   *RunStore
	tmpl   *template.Template
	mux    *http.ServeMux
}

// NewServer creates a new HTTP server.
func NewServer(runner *job.Runner, gate *auth.Gate, opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if opts.FileName == "" {
		opts.FileName = writer.DefaultFileName
	}

	s := &Server{
		opts:   opts,
		runner: runner,
		gate:   gate,
		runs:   NewRunStore(opts.RunTTL),
		tmpl:   tmpl,
		mux:    http.NewServeMux(),
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures HTTP handlers.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.requirePage(s.handleIndex))
	s.mux.HandleFunc("POST /run", s.requirePage(s.handleRun))

	s.mux.HandleFunc("POST /api/map", s.requireAPI(s.handleMap))
	s.mux.HandleFunc("GET /api/download/{id}", s.requireAPI(s.handleDownload))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Runs exposes the completed-run store.
func (s *Server) Runs() *RunStore { return s.runs }

// Sweep drops expired runs and sessions.
func (s *Server) Sweep() {
	runs := s.runs.Cleanup()
	sessions := s.gate.Sweep()
	if runs > 0 || sessions > 0 {
		logging.Default().Debug().Int("runs", runs).Int("sessions", sessions).Msg("expired entries removed")
	}
}

// --- Session handling ---

func (s *Server) session(r *http.Request) (auth.Session, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return auth.Session{}, amerrors.New(amerrors.CodeUnauthorized, "login required")
	}
	return s.gate.Check(c.Value)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, sess auth.Session)

func (s *Server) requirePage(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) requireAPI(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			jsonError(w, err, http.StatusUnauthorized)
			return
		}
		next(w, r, sess)
	}
}

// --- Pages ---

type pageData struct {
	Title string
	User  string
	Error string

	RunID     string
	Master    string
	Target    string
	Counters  []mapping.Counter
	Skipped   []mapping.Pair
	Columns   []string
	Rows      [][]string
	TotalRows int
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	if data.Title == "" {
		data.Title = s.opts.Title
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		logging.Default().Error().Err(err).Str("template", name).Msg("render failed")
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "login.html", pageData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login.html", pageData{Error: "Invalid login form."})
		return
	}

	sess, err := s.gate.Login(r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		logging.FromContext(r.Context()).Warn().Str("remote", r.RemoteAddr).Msg("login rejected")
		s.render(w, http.StatusUnauthorized, "login.html", pageData{Error: amerrors.UserMessage(err)})
		return
	}

	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	}
	if !sess.ExpiresAt.IsZero() {
		cookie.Expires = sess.ExpiresAt
	}
	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.gate.Logout(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	s.render(w, http.StatusOK, "index.html", pageData{User: sess.Username})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	run, err := s.execute(w, r, sess)
	if err != nil {
		s.render(w, statusFor(err), "index.html", pageData{User: sess.Username, Error: amerrors.UserMessage(err)})
		return
	}

	ds := run.Outcome.Dataset()
	head := ds.Head(s.opts.PreviewRows)
	stats := run.Outcome.Stats()

	s.render(w, http.StatusOK, "result.html", pageData{
		User:      sess.Username,
		RunID:     run.Outcome.ID,
		Master:    run.Master,
		Target:    run.Target,
		Counters:  stats.Counters(),
		Skipped:   run.Outcome.Result.Skipped,
		Columns:   head.Columns,
		Rows:      head.Strings(),
		TotalRows: ds.Len(),
	})
}

// --- API ---

// MapResponse is the JSON body returned by POST /api/map.
type MapResponse struct {
	RunID    string            `json:"run_id"`
	Stats    mapping.Stats     `json:"stats"`
	Counters []mapping.Counter `json:"counters"`
	Filled   map[string]int    `json:"filled"`
	Skipped  []string          `json:"skipped,omitempty"`
	Preview  Preview           `json:"preview"`
	Download string            `json:"download"`
}

// Preview is the head of the updated dataset rendered as strings.
type Preview struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	run, err := s.execute(w, r, sess)
	if err != nil {
		jsonError(w, err, statusFor(err))
		return
	}

	res := run.Outcome.Result
	head := res.Dataset.Head(s.opts.PreviewRows)

	resp := MapResponse{
		RunID:    run.Outcome.ID,
		Stats:    res.Stats,
		Counters: res.Stats.Counters(),
		Filled:   res.Filled,
		Preview: Preview{
			Columns:   head.Columns,
			Rows:      head.Strings(),
			TotalRows: res.Dataset.Len(),
		},
		Download: "/api/download/" + run.Outcome.ID,
	}
	for _, p := range res.Skipped {
		resp.Skipped = append(resp.Skipped, p.String())
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	run, ok := s.runs.Get(r.PathValue("id"))
	if !ok || run.Owner != sess.Username {
		jsonError(w, errors.New("run not found or expired"), http.StatusNotFound)
		return
	}

	out := writer.New(writer.FormatXLSX, s.opts.Writer)
	w.Header().Set("Content-Type", out.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.opts.FileName))
	if err := s.runner.Export(r.Context(), run.Outcome, out, w); err != nil {
		// Headers are already sent; the client sees a truncated body.
		logging.FromContext(r.Context()).Error().Err(err).Str("run_id", run.Outcome.ID).Msg("download failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.opts.Version,
		"runs":    s.runs.Count(),
	})
}

// execute reads both uploads from the multipart form and runs the mapping.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, sess auth.Session) (*Run, error) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	master, mclose, err := formInput(r, "master")
	if err != nil {
		return nil, err
	}
	defer mclose()
	target, tclose, err := formInput(r, "target")
	if err != nil {
		return nil, err
	}
	defer tclose()

	ctx := logging.WithField(r.Context(), "user", sess.Username)
	out, err := s.runner.Run(ctx, master, target)
	if err != nil {
		return nil, err
	}

	run := &Run{Outcome: out, Owner: sess.Username, Master: master.Name, Target: target.Name}
	s.runs.Put(run)
	return run, nil
}

// formInput opens one uploaded file. A missing field yields an empty
// Input so the runner can report which uploads are absent.
func formInput(r *http.Request, field string) (job.Input, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return job.Input{}, noop, nil
	}

	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return job.Input{}, noop, nil
	}
	if err != nil {
		return job.Input{}, noop, err
	}
	if hdr.Size == 0 && strings.TrimSpace(hdr.Filename) == "" {
		f.Close()
		return job.Input{}, noop, nil
	}
	return job.Input{Name: hdr.Filename, Reader: f}, func() { closeQuietly(f) }, nil
}

func closeQuietly(f multipart.File) { _ = f.Close() }

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch amerrors.GetCode(err) {
	case amerrors.CodeMissingUploads:
		return http.StatusBadRequest
	case amerrors.CodeLoadFailure, amerrors.CodeMissingKeyColumn, amerrors.CodeEncodingError:
		return http.StatusUnprocessableEntity
	case amerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case amerrors.CodeCanceled:
		return http.StatusServiceUnavailable
	case amerrors.CodeUnknown:
		if errors.Is(err, multipart.ErrMessageTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Helper functions

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, err error, status int) {
	body := map[string]string{"error": amerrors.UserMessage(err)}
	if code := amerrors.GetCode(err); code != amerrors.CodeUnknown {
		body["code"] = string(code)
	}
	jsonResponse(w, status, body)
}
