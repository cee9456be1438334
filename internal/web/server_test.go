package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/crypto"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/migrate"
	"github.com/example/court-scheduler/internal/requests"
	"github.com/example/court-scheduler/internal/runs"
	"github.com/example/court-scheduler/internal/settings"
)

// console is a Server wired to the database named by TEST_DATABASE_URL, with
// one operator account already logged in. Tests skip when the variable is
// unset.
type console struct {
	srv      *httptest.Server
	client   *http.Client
	store    *db.DB
	requests *requests.Repo
	settings *settings.Store

	// owner is the ownership id the handlers stamp on this session,
	// "web:<user id>".
	owner string
}

func newConsole(t *testing.T) *console {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	d, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(d.Close)
	if err := d.Ping(ctx); err != nil {
		t.Fatalf("ping test database: %v", err)
	}
	if err := migrate.Up(ctx, d); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	aead, err := crypto.New([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("crypto.New: %v", err)
	}
	authStore := auth.NewStore(d, []byte("0123456789abcdef0123456789abcdef"), []byte("0123456789abcdef"))

	username := fmt.Sprintf("op-%d", time.Now().UnixNano())
	if err := authStore.CreateUser(ctx, username, "swordfish"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Exec(context.Background(), `DELETE FROM users WHERE username = $1`, username)
	})
	uid, err := authStore.Authenticate(ctx, username, "swordfish")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	reqRepo := requests.NewRepo(d)
	settingsStore := settings.NewStore(d, aead)
	s := &Server{
		Auth:     authStore,
		Requests: reqRepo,
		Runs:     runs.NewRepo(d),
		Settings: settingsStore,
		Log:      zap.NewNop(),
	}
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		// Keep redirect responses as-is so status codes stay observable.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	res, err := client.PostForm(srv.URL+"/login", url.Values{
		"username": {username},
		"password": {"swordfish"},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusFound {
		t.Fatalf("login status = %d, want %d", res.StatusCode, http.StatusFound)
	}

	return &console{
		srv:      srv,
		client:   client,
		store:    d,
		requests: reqRepo,
		settings: settingsStore,
		owner:    fmt.Sprintf("web:%d", uid),
	}
}

func (c *console) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	res, err := c.client.PostForm(c.srv.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.Fatalf("read POST %s response: %v", path, err)
	}
	return res, string(body)
}

func (c *console) cleanupRequest(t *testing.T, id int64) {
	t.Cleanup(func() {
		_ = c.store.Exec(context.Background(), `DELETE FROM requests WHERE id = $1`, id)
	})
}

func TestConsoleRequiresLogin(t *testing.T) {
	c := newConsole(t)

	anon := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	res, err := anon.Get(c.srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusFound {
		t.Fatalf("status without a session = %d, want %d", res.StatusCode, http.StatusFound)
	}
	if loc := res.Header.Get("Location"); loc != "/login" {
		t.Errorf("redirect target = %q, want /login", loc)
	}
}

func TestConsoleCreateDefaultsOwner(t *testing.T) {
	c := newConsole(t)

	res, _ := c.postForm(t, "/requests/create", url.Values{
		"date": {"2026-09-01"},
		"time": {"18:30"},
	})
	if res.StatusCode != http.StatusFound {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusFound)
	}

	rs, err := c.requests.ListForUser(context.Background(), c.owner)
	if err != nil {
		t.Fatalf("ListForUser(%s): %v", c.owner, err)
	}
	if len(rs) != 1 {
		t.Fatalf("requests owned by %s = %d, want 1", c.owner, len(rs))
	}
	got := rs[0]
	c.cleanupRequest(t, got.ID)
	if got.UserID != c.owner || got.ChatID != c.owner {
		t.Errorf("owner fields = (%q, %q), want both %q", got.UserID, got.ChatID, c.owner)
	}
	if got.DurationMinutes != 90 {
		t.Errorf("duration = %d, want the 90 minute default", got.DurationMinutes)
	}
	if got.Status != requests.StatusPending {
		t.Errorf("status = %s, want %s", got.Status, requests.StatusPending)
	}
}

func TestConsoleCancelRefusedForForeignRequest(t *testing.T) {
	c := newConsole(t)
	ctx := context.Background()

	foreign := fmt.Sprintf("tg-%d", time.Now().UnixNano())
	id, err := c.requests.Create(ctx, requests.Request{
		UserID:          foreign,
		ChatID:          foreign,
		Date:            time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Time:            "18:30",
		DurationMinutes: 90,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c.cleanupRequest(t, id)

	res, body := c.postForm(t, "/requests/cancel", url.Values{"id": {fmt.Sprint(id)}})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want %d with a notice", res.StatusCode, http.StatusOK)
	}
	if want := fmt.Sprintf("Request #%d could not be cancelled", id); !strings.Contains(body, want) {
		t.Errorf("cancel response is missing the notice %q", want)
	}

	got, err := c.requests.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get(%d): %v", id, err)
	}
	if got.Status != requests.StatusPending {
		t.Errorf("foreign request status = %s, want still %s", got.Status, requests.StatusPending)
	}
}

func TestConsolePortalKeepsStoredPassword(t *testing.T) {
	c := newConsole(t)
	t.Cleanup(func() {
		_ = c.store.Exec(context.Background(), `DELETE FROM portal_credentials`)
	})

	res, body := c.postForm(t, "/portal", url.Values{
		"url":      {"https://courts.example.com/booking"},
		"username": {"court-bot"},
		"password": {"first-secret"},
	})
	if res.StatusCode != http.StatusOK || !strings.Contains(body, "Credentials updated") {
		t.Fatalf("save status = %d, want %d with the updated notice", res.StatusCode, http.StatusOK)
	}
	if strings.Contains(body, "first-secret") {
		t.Error("portal page echoed the stored password")
	}

	// An empty password field keeps the stored one.
	res, body = c.postForm(t, "/portal", url.Values{
		"url":      {"https://courts.example.com/booking"},
		"username": {"court-bot-2"},
		"password": {""},
	})
	if res.StatusCode != http.StatusOK || !strings.Contains(body, "Credentials updated") {
		t.Fatalf("re-save status = %d, want %d with the updated notice", res.StatusCode, http.StatusOK)
	}

	pc, err := c.settings.Portal(context.Background())
	if err != nil {
		t.Fatalf("Portal: %v", err)
	}
	if pc.Username != "court-bot-2" {
		t.Errorf("username = %q, want the updated court-bot-2", pc.Username)
	}
	if pc.Password != "first-secret" {
		t.Errorf("password = %q, want the stored one kept", pc.Password)
	}
}
