package contract

import "context"

// LeadBackend is the narrow contract over the three side-effecting backend
// endpoints. Implementations return the backend's human-readable message;
// transport faults surface as errors and are converted to Err outcomes at
// the tool boundary, never above it.
type LeadBackend interface {
	GenerateQuoteID(ctx context.Context) (string, error)
	SaveLead(ctx context.Context, lead Lead) (string, error)
	SendConfirmationEmail(ctx context.Context, toEmail, quoteID, fullName string) (string, error)
}

// SearchIndex scopes semantic search to one uploaded FAQ corpus.
type SearchIndex interface {
	Search(ctx context.Context, query string) ([]Snippet, error)
}

// FieldExtractor pulls lead fields out of one free-text user turn.
type FieldExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) (LeadFields, error)
}

// IntentClassifier decides whether a turn is a question, a purchase
// expression, or neither.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// TranscriptSink receives every thread message for the compliance audit log.
type TranscriptSink interface {
	Append(ctx context.Context, entry TranscriptEntry) error
}

// Delegate is an agent invoked as a tool by another agent. The returned
// text is relayed to the user byte-for-byte by the delegating agent.
type Delegate interface {
	HandleTurn(ctx context.Context, handoff HandoffContext) (string, error)
}
