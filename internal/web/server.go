package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/requests"
	"github.com/example/court-scheduler/internal/runs"
	"github.com/example/court-scheduler/internal/settings"
)

//go:embed templates/*.html static/*
var fs embed.FS

type Server struct {
	Auth     *auth.Store
	Requests *requests.Repo
	Runs     *runs.Repo
	Settings *settings.Store

	// EnvCreds marks that environment variables override the stored
	// portal account.
	EnvCreds bool
	BaseURL  string
	Log      *zap.Logger
}

type tmplData struct {
	Title string
	User  int64
	Flash string

	Requests []requests.Request
	Request  requests.Request
	Runs     []runs.Run
	Portal   settings.PortalCredentials
	EnvCreds bool
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/requests/new", s.Auth.RequireAuth(http.HandlerFunc(s.handleRequestNew)))
	mux.Handle("/requests/create", s.Auth.RequireAuth(http.HandlerFunc(s.handleRequestCreate)))
	mux.Handle("/requests/cancel", s.Auth.RequireAuth(http.HandlerFunc(s.handleRequestCancel)))
	mux.Handle("/portal", s.Auth.RequireAuth(http.HandlerFunc(s.handlePortal)))
	mux.Handle("/history", s.Auth.RequireAuth(http.HandlerFunc(s.handleHistory)))

	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderHome(w, r, "")
}

func (s *Server) renderHome(w http.ResponseWriter, r *http.Request, flash string) {
	uid, _ := auth.UserIDFromContext(r.Context())
	rs, err := s.Requests.ListRecent(r.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/requests.html", tmplData{
		Title:    "Requests",
		User:     uid,
		Flash:    flash,
		Requests: rs,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		id, err := s.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleRequestNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	owner := fmt.Sprintf("web:%d", uid)
	s.render(w, "templates/new_request.html", tmplData{
		Title: "New Request",
		User:  uid,
		Request: requests.Request{
			UserID:          owner,
			ChatID:          owner,
			DurationMinutes: 90,
		},
	})
}

func (s *Server) handleRequestCreate(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := requests.Request{
		UserID:          strings.TrimSpace(r.FormValue("user_id")),
		ChatID:          strings.TrimSpace(r.FormValue("chat_id")),
		Time:            strings.TrimSpace(r.FormValue("time")),
		CourtPreference: strings.TrimSpace(r.FormValue("court_preference")),
		DurationMinutes: 90,
	}
	owner := fmt.Sprintf("web:%d", uid)
	if req.UserID == "" {
		req.UserID = owner
	}
	if req.ChatID == "" {
		req.ChatID = req.UserID
	}
	if v := strings.TrimSpace(r.FormValue("duration_minutes")); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 {
			s.renderNewRequest(w, uid, req, "Invalid duration")
			return
		}
		req.DurationMinutes = d
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(r.FormValue("date")))
	if err != nil {
		s.renderNewRequest(w, uid, req, "Invalid date, use YYYY-MM-DD")
		return
	}
	req.Date = date

	if err := req.Validate(); err != nil {
		s.renderNewRequest(w, uid, req, err.Error())
		return
	}
	if _, err := s.Requests.Create(r.Context(), req); err != nil {
		s.Log.Error("create request failed", zap.Error(err))
		s.renderNewRequest(w, uid, req, "Failed to create request")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) renderNewRequest(w http.ResponseWriter, uid int64, req requests.Request, flash string) {
	s.render(w, "templates/new_request.html", tmplData{
		Title:   "New Request",
		User:    uid,
		Flash:   flash,
		Request: req,
	})
}

func (s *Server) handleRequestCancel(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	ok, err := s.Requests.Cancel(r.Context(), id, fmt.Sprintf("web:%d", uid))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		s.renderHome(w, r, fmt.Sprintf("Request #%d could not be cancelled (not yours, or no longer pending)", id))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		s.renderPortal(w, r, uid, "")
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pc := settings.PortalCredentials{
			URL:      strings.TrimSpace(r.FormValue("url")),
			Username: strings.TrimSpace(r.FormValue("username")),
			Password: r.FormValue("password"),
		}
		if pc.Password == "" {
			// keep the stored password on an empty field
			if cur, err := s.Settings.Portal(r.Context()); err == nil {
				pc.Password = cur.Password
			}
		}
		if pc.URL == "" || pc.Username == "" || pc.Password == "" {
			s.renderPortal(w, r, uid, "URL, username and password are all required")
			return
		}
		if err := s.Settings.SavePortal(r.Context(), pc); err != nil {
			s.Log.Error("save portal credentials failed", zap.Error(err))
			s.renderPortal(w, r, uid, "Failed to save credentials")
			return
		}
		s.renderPortal(w, r, uid, "Credentials updated")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderPortal(w http.ResponseWriter, r *http.Request, uid int64, flash string) {
	pc, err := s.Settings.Portal(r.Context())
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	pc.Password = "" // never sent to the page
	s.render(w, "templates/portal.html", tmplData{
		Title:    "Portal Account",
		User:     uid,
		Flash:    flash,
		Portal:   pc,
		EnvCreds: s.EnvCreds,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	rs, err := s.Runs.ListRecent(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/history.html", tmplData{
		Title: "Batch History",
		User:  uid,
		Runs:  rs,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("web console listening", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
