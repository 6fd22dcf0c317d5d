package tool

import (
	"context"
	"strings"
	"testing"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	backendx "github.com/abhaygunhalkar/insurance-agents/pkg/backend"
)

type fakeBackend struct {
	quoteID  string
	quoteErr error

	saveMsg  string
	saveErr  error
	saved    []contractx.Lead
	emailMsg string
	emailErr error
	emails   []string
}

func (f *fakeBackend) GenerateQuoteID(ctx context.Context) (string, error) {
	return f.quoteID, f.quoteErr
}

func (f *fakeBackend) SaveLead(ctx context.Context, lead contractx.Lead) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, lead)
	return f.saveMsg, nil
}

func (f *fakeBackend) SendConfirmationEmail(ctx context.Context, toEmail, quoteID, fullName string) (string, error) {
	if f.emailErr != nil {
		return "", f.emailErr
	}
	f.emails = append(f.emails, toEmail)
	return f.emailMsg, nil
}

func leadRegistry(t *testing.T, backend contractx.LeadBackend) *Registry {
	t.Helper()
	r := NewRegistry(contractx.AgentTypeLeadIntake)
	if err := DeclareLeadTools(r, backend); err != nil {
		t.Fatalf("DeclareLeadTools() error = %v", err)
	}
	return r
}

func TestDeclareLeadToolsRegistersAll(t *testing.T) {
	t.Parallel()

	r := leadRegistry(t, &fakeBackend{})
	for _, name := range []string{ToolGenerateQuoteID, ToolSaveLead, ToolSendEmail} {
		if !r.Has(name) {
			t.Fatalf("tool %s not declared", name)
		}
	}
}

func TestGenerateQuoteIDOutcome(t *testing.T) {
	t.Parallel()

	r := leadRegistry(t, &fakeBackend{quoteID: "QT-42"})
	result := r.Execute(context.Background(), contractx.ToolRequest{Tool: ToolGenerateQuoteID})
	if !result.Outcome.OK {
		t.Fatalf("unexpected outcome: %+v", result.Outcome)
	}
	if result.Outcome.Message != "QT-42" {
		t.Fatalf("unexpected message: %q", result.Outcome.Message)
	}
}

func TestSaveLeadPassesAllFields(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{saveMsg: "Lead QT-42 saved."}
	r := leadRegistry(t, backend)

	result := r.Execute(context.Background(), contractx.ToolRequest{
		Tool: ToolSaveLead,
		Args: map[string]any{
			"quote_id":     "QT-42",
			"full_name":    "Jane Smith",
			"email":        "jane@example.com",
			"phone_number": "555-0100",
			"age":          float64(34),
			"location":     "Austin",
		},
	})
	if !result.Outcome.OK {
		t.Fatalf("unexpected outcome: %+v", result.Outcome)
	}
	if len(backend.saved) != 1 {
		t.Fatalf("lead not saved")
	}
	lead := backend.saved[0]
	if lead.QuoteID != "QT-42" || lead.Age != 34 || lead.Location != "Austin" {
		t.Fatalf("unexpected lead: %+v", lead)
	}
}

func TestLeadToolFailureKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want contractx.FailureKind
	}{
		{"timeout", backendx.ErrTimeout, contractx.FailTimeout},
		{"http status", backendx.ErrHTTPStatus, contractx.FailHTTPStatus},
		{"bad response", backendx.ErrBadResponse, contractx.FailBadResponse},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := leadRegistry(t, &fakeBackend{quoteErr: tc.err})
			result := r.Execute(context.Background(), contractx.ToolRequest{Tool: ToolGenerateQuoteID})
			if result.Outcome.OK {
				t.Fatal("expected failed outcome")
			}
			if result.Outcome.Kind != tc.want {
				t.Fatalf("kind = %s, want %s", result.Outcome.Kind, tc.want)
			}
			if !strings.HasPrefix(result.Outcome.Message, "Error: ") {
				t.Fatalf("unexpected message: %q", result.Outcome.Message)
			}
		})
	}
}

func TestSendEmailReturnsMessageVerbatim(t *testing.T) {
	t.Parallel()

	const rendered = "Dear Jane Smith,\n\nYour quote QT-42 is ready.\nBest regards"
	r := leadRegistry(t, &fakeBackend{emailMsg: rendered})

	result := r.Execute(context.Background(), contractx.ToolRequest{
		Tool: ToolSendEmail,
		Args: map[string]any{
			"to_email":  "jane@example.com",
			"quote_id":  "QT-42",
			"full_name": "Jane Smith",
		},
	})
	if !result.Outcome.OK {
		t.Fatalf("unexpected outcome: %+v", result.Outcome)
	}
	if result.Outcome.Message != rendered {
		t.Fatalf("message not verbatim: %q", result.Outcome.Message)
	}
}
