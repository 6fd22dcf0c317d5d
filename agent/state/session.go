package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

// Stage is the lead-intake workflow position. Transitions only move forward:
// collecting -> ready_for_quote -> quote_generated -> persisted -> notified
// -> closed. A persisted-but-unnotified intake may close directly from
// persisted when the notification tool fails.
type Stage string

const (
	StageCollecting     Stage = "collecting"
	StageReadyForQuote  Stage = "ready_for_quote"
	StageQuoteGenerated Stage = "quote_generated"
	StagePersisted      Stage = "persisted"
	StageNotified       Stage = "notified"
	StageClosed         Stage = "closed"
)

var (
	ErrInvalidSession    = errors.New("session id is empty")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrQuoteAlreadySet   = errors.New("quote id already generated for this session")
	ErrLeadIncomplete    = errors.New("lead record is incomplete")
)

const (
	minLeadAge = 18
	maxLeadAge = 120
)

// Session is the persistent source-of-truth for one conversation. It holds
// the lead under construction, the intake stage, and the delegation flags
// the support agent routes on.
type Session struct {
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	Version   int    `json:"version"`

	Stage Stage          `json:"stage"`
	Lead  contractx.Lead `json:"lead"`

	// Delegation flags for the support agent.
	AwaitingConsent bool `json:"awaiting_consent,omitempty"`
	Delegated       bool `json:"delegated,omitempty"`

	// EmailMessage is the complete notification tool output, kept so the
	// closing statement can reproduce it unabridged.
	EmailMessage string `json:"email_message,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(sessionID string, now time.Time) *Session {
	return &Session{
		SessionID: strings.TrimSpace(sessionID),
		Version:   1,
		Stage:     StageCollecting,
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// MissingFields returns the display names of every required lead field that
// is absent or implausible, in canonical order. An empty slice means the
// lead is ready for quote generation.
func (s *Session) MissingFields() []string {
	var missing []string
	lead := s.Lead
	if strings.TrimSpace(lead.FullName) == "" {
		missing = append(missing, contractx.FieldFullName)
	}
	if !plausibleEmail(lead.Email) {
		missing = append(missing, contractx.FieldEmail)
	}
	if strings.TrimSpace(lead.PhoneNumber) == "" {
		missing = append(missing, contractx.FieldPhoneNumber)
	}
	if lead.Age < minLeadAge || lead.Age > maxLeadAge {
		missing = append(missing, contractx.FieldAge)
	}
	if strings.TrimSpace(lead.Location) == "" {
		missing = append(missing, contractx.FieldLocation)
	}
	return missing
}

func plausibleEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

// RefreshStage reconciles collecting/ready stages with the current lead
// contents. Stages at or past quote generation are never regressed.
func (s *Session) RefreshStage(now time.Time) {
	switch s.Stage {
	case StageCollecting, StageReadyForQuote:
		if len(s.MissingFields()) == 0 {
			s.Stage = StageReadyForQuote
		} else {
			s.Stage = StageCollecting
		}
		s.Touch(now)
	}
}

// MarkQuoteGenerated records the issued quote id. It is the idempotency
// guard for the intake: a session that already carries a quote id rejects a
// second one, so a retried turn can never issue a duplicate.
func (s *Session) MarkQuoteGenerated(quoteID string, now time.Time) error {
	if strings.TrimSpace(quoteID) == "" {
		return fmt.Errorf("%w: quote id is empty", ErrInvalidTransition)
	}
	if s.Lead.QuoteID != "" {
		return ErrQuoteAlreadySet
	}
	if s.Stage != StageReadyForQuote {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, StageQuoteGenerated)
	}
	s.Lead.QuoteID = strings.TrimSpace(quoteID)
	s.Stage = StageQuoteGenerated
	s.Touch(now)
	return nil
}

// MarkPersisted requires a prior quote id: no lead is ever saved without one.
func (s *Session) MarkPersisted(now time.Time) error {
	if s.Stage != StageQuoteGenerated {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, StagePersisted)
	}
	if s.Lead.QuoteID == "" {
		return fmt.Errorf("%w: quote id missing", ErrLeadIncomplete)
	}
	if missing := s.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrLeadIncomplete, strings.Join(missing, ", "))
	}
	s.Stage = StagePersisted
	s.Touch(now)
	return nil
}

// MarkNotified stores the full email tool output for verbatim replay.
func (s *Session) MarkNotified(emailMessage string, now time.Time) error {
	if s.Stage != StagePersisted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, StageNotified)
	}
	s.EmailMessage = emailMessage
	s.Stage = StageNotified
	s.Touch(now)
	return nil
}

// Close ends the intake. Allowed from notified, or from persisted when the
// notification failed (persisted-but-unnotified is a legal terminal
// substate).
func (s *Session) Close(now time.Time) error {
	if s.Stage != StageNotified && s.Stage != StagePersisted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, StageClosed)
	}
	s.Stage = StageClosed
	s.Delegated = false
	s.AwaitingConsent = false
	s.Touch(now)
	return nil
}

func (s *Session) Validate() error {
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	switch s.Stage {
	case StageCollecting, StageReadyForQuote:
		if s.Lead.QuoteID != "" {
			return fmt.Errorf("%w: stage=%s carries a quote id", ErrInvalidTransition, s.Stage)
		}
	case StageQuoteGenerated, StagePersisted, StageNotified, StageClosed:
		if s.Lead.QuoteID == "" {
			return fmt.Errorf("%w: stage=%s without quote id", ErrInvalidTransition, s.Stage)
		}
	default:
		return fmt.Errorf("%w: unknown stage=%q", ErrInvalidTransition, s.Stage)
	}
	return nil
}
