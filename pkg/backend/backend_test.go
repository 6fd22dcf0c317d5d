package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Code: "secret-code", Timeout: timeout})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestGenerateQuoteID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-quote-id" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("code") != "secret-code" {
			t.Errorf("missing authorization code, query=%s", r.URL.RawQuery)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]string{"quote_id": "QT-20260314-001"})
	}, 0)

	got, err := client.GenerateQuoteID(context.Background())
	if err != nil {
		t.Fatalf("GenerateQuoteID() error = %v", err)
	}
	if got != "QT-20260314-001" {
		t.Fatalf("unexpected quote id: %s", got)
	}
}

func TestGenerateQuoteIDEmptyResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"quote_id": "  "})
	}, 0)

	_, err := client.GenerateQuoteID(context.Background())
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
}

func TestSaveLead(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leads" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var lead contractx.Lead
		if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
			t.Errorf("decode lead: %v", err)
		}
		if lead.QuoteID != "QT-1" || lead.FullName != "Jane Smith" {
			t.Errorf("unexpected lead payload: %+v", lead)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "message": "Lead QT-1 saved."})
	}, 0)

	msg, err := client.SaveLead(context.Background(), contractx.Lead{
		QuoteID:     "QT-1",
		FullName:    "Jane Smith",
		Email:       "jane@example.com",
		PhoneNumber: "555-0100",
		Age:         34,
		Location:    "Austin",
	})
	if err != nil {
		t.Fatalf("SaveLead() error = %v", err)
	}
	if msg != "Lead QT-1 saved." {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestSendConfirmationEmail(t *testing.T) {
	t.Parallel()

	const rendered = "Dear Jane Smith,\n\nYour quote QT-1 is ready.\n"

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send-email" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode email request: %v", err)
		}
		if req["to_email"] != "jane@example.com" || req["quote_id"] != "QT-1" {
			t.Errorf("unexpected email payload: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "message": rendered})
	}, 0)

	msg, err := client.SendConfirmationEmail(context.Background(), "jane@example.com", "QT-1", "Jane Smith")
	if err != nil {
		t.Fatalf("SendConfirmationEmail() error = %v", err)
	}
	if msg != rendered {
		t.Fatalf("message not returned verbatim: %q", msg)
	}
}

func TestPostNonSuccessStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, 0)

	_, err := client.GenerateQuoteID(context.Background())
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}
}

func TestPostMalformedBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}, 0)

	_, err := client.SaveLead(context.Background(), contractx.Lead{})
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
}

func TestPostTimeout(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, 20*time.Millisecond)

	_, err := client.GenerateQuoteID(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestPostContextDeadline(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GenerateQuoteID(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{BaseURL: "", Code: "c"}); err == nil {
		t.Fatal("expected error for empty base url")
	}
	if _, err := NewClient(Config{BaseURL: "http://localhost:7071", Code: " "}); err == nil {
		t.Fatal("expected error for empty code")
	}
}
