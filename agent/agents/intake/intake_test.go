package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	statex "github.com/abhaygunhalkar/insurance-agents/agent/state"
	toolx "github.com/abhaygunhalkar/insurance-agents/agent/tool"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeExtractor struct {
	fields contractx.LeadFields
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, req contractx.ExtractRequest) (contractx.LeadFields, error) {
	return f.fields, f.err
}

type fakeBackend struct {
	quoteID  string
	quoteErr error
	saveMsg  string
	saveErr  error
	emailMsg string
	emailErr error

	quoteCalls int
	saveCalls  int
	emailCalls int
	calls      []string
}

func (f *fakeBackend) GenerateQuoteID(ctx context.Context) (string, error) {
	f.quoteCalls++
	f.calls = append(f.calls, "quote")
	return f.quoteID, f.quoteErr
}

func (f *fakeBackend) SaveLead(ctx context.Context, lead contractx.Lead) (string, error) {
	f.saveCalls++
	f.calls = append(f.calls, "save")
	if f.saveErr != nil {
		return "", f.saveErr
	}
	return f.saveMsg, nil
}

func (f *fakeBackend) SendConfirmationEmail(ctx context.Context, toEmail, quoteID, fullName string) (string, error) {
	f.emailCalls++
	f.calls = append(f.calls, "email")
	if f.emailErr != nil {
		return "", f.emailErr
	}
	return f.emailMsg, nil
}

func newTestAgent(t *testing.T, backend *fakeBackend, extractor *fakeExtractor, store statex.Store) *Agent {
	t.Helper()

	registry := toolx.NewRegistry(contractx.AgentTypeLeadIntake)
	if err := toolx.DeclareLeadTools(registry, backend); err != nil {
		t.Fatalf("DeclareLeadTools() error = %v", err)
	}

	agent, err := New(Config{}, store, registry, extractor, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return agent
}

func allFields() contractx.LeadFields {
	return contractx.LeadFields{
		FullName:    "Jane Smith",
		Email:       "jane@example.com",
		PhoneNumber: "555-0100",
		Age:         34,
		Location:    "Austin",
	}
}

func TestMissingFieldsPromptNamesExactlyTheAbsentOnes(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{fields: contractx.LeadFields{FullName: "Jane Smith", Email: "jane@example.com"}}
	agent := newTestAgent(t, &fakeBackend{}, extractor, statex.NewMemoryStore())

	reply, err := agent.HandleTurn(context.Background(), contractx.HandoffContext{
		SessionID:   "s1",
		UserMessage: "I'm Jane Smith, jane@example.com",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	want := "Thank you! I still need your phone number, age, and location to provide you with an accurate quote."
	if reply != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}
}

func TestSingleMissingFieldProse(t *testing.T) {
	t.Parallel()

	fields := allFields()
	fields.Location = ""
	agent := newTestAgent(t, &fakeBackend{}, &fakeExtractor{fields: fields}, statex.NewMemoryStore())

	reply, err := agent.HandleTurn(context.Background(), contractx.HandoffContext{
		SessionID:   "s1",
		UserMessage: "here are my details",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "Thank you! I still need your location to provide you with an accurate quote." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestCompleteIntakeRunsToolsInOrderExactlyOnce(t *testing.T) {
	t.Parallel()

	const email = "Dear Jane Smith,\n\nYour personalized quote QT-42 is on its way.\nBest regards,\nThe Team"
	backend := &fakeBackend{quoteID: "QT-42", saveMsg: "Lead saved.", emailMsg: email}
	store := statex.NewMemoryStore()
	agent := newTestAgent(t, backend, &fakeExtractor{fields: allFields()}, store)

	reply, err := agent.HandleTurn(context.Background(), contractx.HandoffContext{
		SessionID:   "s1",
		UserMessage: "Jane Smith, jane@example.com, 555-0100, 34, Austin",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if got, want := backend.calls, []string{"quote", "save", "email"}; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("tool order = %v, want %v", got, want)
	}

	if !strings.Contains(reply, "Your quote ID is QT-42.") {
		t.Fatalf("closing lacks quote id: %q", reply)
	}
	// The rendered email must appear unabridged.
	if !strings.Contains(reply, email) {
		t.Fatalf("closing lacks verbatim email: %q", reply)
	}

	sess, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Stage != statex.StageClosed {
		t.Fatalf("unexpected stage: %s", sess.Stage)
	}
	if sess.EmailMessage != email {
		t.Fatalf("email not stored verbatim: %q", sess.EmailMessage)
	}
}

func TestQuoteFailureBlocksPersistence(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{quoteErr: errors.New("upstream down")}
	store := statex.NewMemoryStore()
	agent := newTestAgent(t, backend, &fakeExtractor{fields: allFields()}, store)

	reply, err := agent.HandleTurn(context.Background(), contractx.HandoffContext{
		SessionID:   "s1",
		UserMessage: "all my details",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if !strings.HasPrefix(reply, "Error: ") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if backend.saveCalls != 0 || backend.emailCalls != 0 {
		t.Fatalf("downstream tools called after quote failure: %+v", backend.calls)
	}

	sess, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Stage != statex.StageReadyForQuote {
		t.Fatalf("unexpected stage: %s", sess.Stage)
	}
	if sess.Lead.QuoteID != "" {
		t.Fatalf("quote id set despite failure: %s", sess.Lead.QuoteID)
	}
}

func TestRetriedTurnNeverIssuesSecondQuote(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{quoteID: "QT-42", saveErr: errors.New("db down")}
	store := statex.NewMemoryStore()
	agent := newTestAgent(t, backend, &fakeExtractor{fields: allFields()}, store)

	ctx := context.Background()
	handoff := contractx.HandoffContext{SessionID: "s1", UserMessage: "my details"}

	if _, err := agent.HandleTurn(ctx, handoff); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if backend.quoteCalls != 1 {
		t.Fatalf("quote calls = %d", backend.quoteCalls)
	}

	// Persistence recovers; the retry must reuse the reserved quote id.
	backend.saveErr = nil
	backend.saveMsg = "Lead saved."
	backend.emailMsg = "email body"

	reply, err := agent.HandleTurn(ctx, handoff)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if backend.quoteCalls != 1 {
		t.Fatalf("quote issued twice: %d calls", backend.quoteCalls)
	}
	if backend.saveCalls != 2 {
		t.Fatalf("save calls = %d", backend.saveCalls)
	}
	if !strings.Contains(reply, "QT-42") {
		t.Fatalf("reply lacks reserved quote id: %q", reply)
	}
}

func TestEmailFailureStillClosesIntake(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{quoteID: "QT-42", saveMsg: "Lead saved.", emailErr: errors.New("smtp down")}
	store := statex.NewMemoryStore()
	agent := newTestAgent(t, backend, &fakeExtractor{fields: allFields()}, store)

	reply, err := agent.HandleTurn(context.Background(), contractx.HandoffContext{
		SessionID:   "s1",
		UserMessage: "my details",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if !strings.Contains(reply, "Your quote ID is QT-42.") {
		t.Fatalf("closing lacks quote id: %q", reply)
	}
	// The failure string is surfaced in place of the email body.
	if !strings.Contains(reply, "Error: ") {
		t.Fatalf("reply lacks failure detail: %q", reply)
	}

	sess, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Stage != statex.StageClosed {
		t.Fatalf("unexpected stage: %s", sess.Stage)
	}
}

func TestClosedSessionShortCircuits(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{quoteID: "QT-42", saveMsg: "saved", emailMsg: "email body"}
	store := statex.NewMemoryStore()
	agent := newTestAgent(t, backend, &fakeExtractor{fields: allFields()}, store)

	ctx := context.Background()
	handoff := contractx.HandoffContext{SessionID: "s1", UserMessage: "my details"}
	if _, err := agent.HandleTurn(ctx, handoff); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	reply, err := agent.HandleTurn(ctx, contractx.HandoffContext{SessionID: "s1", UserMessage: "anything else?"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !strings.Contains(reply, "already complete") || !strings.Contains(reply, "QT-42") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if backend.quoteCalls != 1 || backend.saveCalls != 1 || backend.emailCalls != 1 {
		t.Fatalf("closed session re-ran tools: %+v", backend.calls)
	}
}

func TestFieldsAccumulateAcrossTurns(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{fields: contractx.LeadFields{FullName: "Jane Smith"}}
	store := statex.NewMemoryStore()
	agent := newTestAgent(t, &fakeBackend{}, extractor, store)

	ctx := context.Background()
	if _, err := agent.HandleTurn(ctx, contractx.HandoffContext{SessionID: "s1", UserMessage: "I'm Jane"}); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	extractor.fields = contractx.LeadFields{Email: "jane@example.com", PhoneNumber: "555-0100"}
	reply, err := agent.HandleTurn(ctx, contractx.HandoffContext{SessionID: "s1", UserMessage: "jane@example.com, 555-0100"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	want := "Thank you! I still need your age and location to provide you with an accurate quote."
	if reply != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}

	sess, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Lead.FullName != "Jane Smith" {
		t.Fatalf("earlier field lost: %+v", sess.Lead)
	}
}

func TestExtractorFailurePropagates(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, &fakeBackend{}, &fakeExtractor{err: errors.New("model down")}, statex.NewMemoryStore())

	_, err := agent.HandleTurn(context.Background(), contractx.HandoffContext{
		SessionID:   "s1",
		UserMessage: "my details",
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleTurnValidatesInput(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, &fakeBackend{}, &fakeExtractor{}, statex.NewMemoryStore())

	if _, err := agent.HandleTurn(context.Background(), contractx.HandoffContext{UserMessage: "hi"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := agent.HandleTurn(context.Background(), contractx.HandoffContext{SessionID: "s1"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
