package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc")
	tg.base = srv.URL

	if err := tg.Send(context.Background(), "42", "Booking request #7: confirmed"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if want := "/bot123:abc/sendMessage"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotBody.ChatID != "42" || gotBody.Text != "Booking request #7: confirmed" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestTelegramSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc")
	tg.base = srv.URL

	err := tg.Send(context.Background(), "42", "hello")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("err = %v, want API description in message", err)
	}
}

func TestTelegramSendNotOKWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false}`))
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc")
	tg.base = srv.URL

	if err := tg.Send(context.Background(), "42", "hello"); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
}

func TestTelegramSendServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	tg := NewTelegram("123:abc")
	tg.base = srv.URL

	if err := tg.Send(context.Background(), "42", "hello"); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
}

func TestLogSink(t *testing.T) {
	s := NewLogSink(zap.NewNop())
	if err := s.Send(context.Background(), "42", "hello"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}
