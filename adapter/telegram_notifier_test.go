package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Shra1V32/server-rental-assistant/planmanager"
)

const telegramConnectTimeout = 2 * time.Second

func TestTelegramNotifierRequestMapping(t *testing.T) {
	var gotMethod string
	var gotPath string
	var gotContentType string
	var gotBody telegramSendMessageBody
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")

		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			t.Errorf("expected EOF after body, got %v", err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	notify := TelegramNotifier(api.URL, "token-1", telegramConnectTimeout)
	err := notify(context.Background(), planmanager.Recipient{Kind: planmanager.RecipientOwner, ID: "1001"}, "Your plan expires in 6h.")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("expected method POST, got %q", gotMethod)
	}
	if gotPath != "/bottoken-1/sendMessage" {
		t.Fatalf("expected sendMessage path with token, got %q", gotPath)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected content-type application/json, got %q", gotContentType)
	}
	if gotBody.ChatID != "1001" {
		t.Fatalf("expected chat_id 1001, got %q", gotBody.ChatID)
	}
	if gotBody.Text != "Your plan expires in 6h." {
		t.Fatalf("expected message text, got %q", gotBody.Text)
	}
}

func TestTelegramNotifierNon2xx(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer api.Close()

	notify := TelegramNotifier(api.URL, "token-1", telegramConnectTimeout)
	err := notify(context.Background(), planmanager.Recipient{Kind: planmanager.RecipientOperator, ID: "ops"}, "hello")
	if err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestTelegramNotifierEmptyToken(t *testing.T) {
	if notify := TelegramNotifier("https://api.telegram.org", "", telegramConnectTimeout); notify != nil {
		t.Fatalf("expected nil notifier without a token")
	}
}
