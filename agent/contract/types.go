package contract

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type AgentType string

const (
	AgentTypeSupport    AgentType = "support"
	AgentTypeLeadIntake AgentType = "lead_intake"
)

// Intent is the coarse routing decision the support agent makes per turn.
type Intent string

const (
	IntentQuestion Intent = "question"
	IntentPurchase Intent = "purchase"
	IntentOther    Intent = "other"
)

// FailureKind tags a tool failure so orchestration logic can branch on it
// instead of pattern-matching message text.
type FailureKind string

const (
	FailTimeout     FailureKind = "timeout"
	FailNetwork     FailureKind = "network"
	FailHTTPStatus  FailureKind = "http_status"
	FailBadResponse FailureKind = "bad_response"
	FailInvalidArgs FailureKind = "invalid_args"
	FailUnavailable FailureKind = "unavailable"
)

// ToolOutcome is the tagged result every tool returns. Message is the
// human-readable text surfaced to the end user; it is never summarized or
// rewritten downstream. A tool never returns a Go error for operational
// faults: those become Err outcomes so the agent can narrate the failure
// instead of aborting the run.
type ToolOutcome struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message"`
	Kind    FailureKind `json:"kind,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

func Ok(message string) ToolOutcome {
	return ToolOutcome{OK: true, Message: message}
}

func Errf(kind FailureKind, format string, args ...any) ToolOutcome {
	detail := fmt.Sprintf(format, args...)
	return ToolOutcome{
		OK:      false,
		Message: "Error: " + detail,
		Kind:    kind,
		Detail:  detail,
	}
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool    string      `json:"tool"`
	Outcome ToolOutcome `json:"outcome"`
}

// Lead is one prospective customer's intake record. All six fields must be
// populated before persistence is attempted; QuoteID is generated exactly
// once per intake and never mutated afterwards.
type Lead struct {
	QuoteID     string `json:"quote_id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Age         int    `json:"age"`
	Location    string `json:"location"`
}

// Field names in the canonical order used when naming missing fields.
const (
	FieldFullName    = "full name"
	FieldEmail       = "email address"
	FieldPhoneNumber = "phone number"
	FieldAge         = "age"
	FieldLocation    = "location"
)

// LeadFields is a partial extraction from one free-text user turn. Empty
// strings and zero age mean the field was not mentioned.
type LeadFields struct {
	FullName    string `json:"full_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Age         int    `json:"age,omitempty"`
	Location    string `json:"location,omitempty"`
}

// MergeInto writes the non-empty extracted fields onto the lead.
func (f LeadFields) MergeInto(lead *Lead) {
	if lead == nil {
		return
	}
	if v := strings.TrimSpace(f.FullName); v != "" {
		lead.FullName = v
	}
	if v := strings.TrimSpace(f.Email); v != "" {
		lead.Email = v
	}
	if v := strings.TrimSpace(f.PhoneNumber); v != "" {
		lead.PhoneNumber = v
	}
	if f.Age > 0 {
		lead.Age = f.Age
	}
	if v := strings.TrimSpace(f.Location); v != "" {
		lead.Location = v
	}
}

type ExtractRequest struct {
	UserMessage string
	Known       Lead
}

// Snippet is one passage returned by the FAQ search index.
type Snippet struct {
	Text  string  `json:"text"`
	Score float64 `json:"score,omitempty"`
}

// TranscriptEntry is one appended message in the compliance audit log.
type TranscriptEntry struct {
	ThreadID string
	RunID    string
	Role     string
	AgentID  string
	Content  string
	At       time.Time
}

// HandoffContext travels across the delegation boundary from the support
// agent into the lead-intake agent.
type HandoffContext struct {
	SessionID   string `json:"session_id"`
	UserMessage string `json:"user_message"`
	History     string `json:"history,omitempty"`
}

// SortedKeys gives deterministic iteration over arg maps.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
