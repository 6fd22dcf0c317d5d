// Package intake implements the lead-generation agent: a fixed-order,
// sequential intake workflow that collects the six lead fields, generates a
// quote id exactly once, persists the lead, sends the confirmation email,
// and closes with the unabridged email content.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	statex "github.com/abhaygunhalkar/insurance-agents/agent/state"
	toolx "github.com/abhaygunhalkar/insurance-agents/agent/tool"
)

// AgentID is the delegated-tool name the support agent declares for this
// agent. It is a default, not a compiled-in requirement: callers may
// override it through Config.
const AgentID = "Lead_Generation_Agent"

const (
	closingStatementFmt = "Thank you! A representative will get back to you shortly with a personalized quote. Your quote ID is %s."
	emailIntroLine      = "Email confirmation message:"
	alreadyClosedFmt    = "Your quote request is already complete. Your quote ID is %s. A representative will be in touch shortly."
	missingFieldsFmt    = "Thank you! I still need your %s to provide you with an accurate quote."
)

type Config struct {
	AgentID string
}

type Option func(*Agent)

func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// Agent drives the intake state machine. Tool-invocation order is fixed;
// the three backend tools are never reordered, parallelized, or repeated
// within a completed intake.
type Agent struct {
	agentID   string
	store     statex.Store
	registry  *toolx.Registry
	extractor contractx.FieldExtractor
	now       func() time.Time
}

var _ contractx.Delegate = (*Agent)(nil)

func New(
	cfg Config,
	store statex.Store,
	registry *toolx.Registry,
	extractor contractx.FieldExtractor,
	opts ...Option,
) (*Agent, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if extractor == nil {
		return nil, errors.New("field extractor is required")
	}
	for _, required := range []string{toolx.ToolGenerateQuoteID, toolx.ToolSaveLead, toolx.ToolSendEmail} {
		if !registry.Has(required) {
			return nil, fmt.Errorf("%w: tool=%s is not declared", contractx.ErrValidation, required)
		}
	}

	agentID := strings.TrimSpace(cfg.AgentID)
	if agentID == "" {
		agentID = AgentID
	}

	a := &Agent{
		agentID:   agentID,
		store:     store,
		registry:  registry,
		extractor: extractor,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

func (a *Agent) ID() string {
	return a.agentID
}

// HandleTurn processes one delegated user turn and returns the text the
// delegating agent must relay verbatim.
func (a *Agent) HandleTurn(ctx context.Context, handoff contractx.HandoffContext) (string, error) {
	sessionID := strings.TrimSpace(handoff.SessionID)
	if sessionID == "" {
		return "", fmt.Errorf("%w: session id is required", contractx.ErrValidation)
	}
	text := strings.TrimSpace(handoff.UserMessage)
	if text == "" {
		return "", fmt.Errorf("%w: user message is required", contractx.ErrValidation)
	}

	now := a.now().UTC()
	sess, err := a.loadOrCreate(ctx, sessionID, now)
	if err != nil {
		return "", err
	}

	if sess.Stage == statex.StageClosed {
		return fmt.Sprintf(alreadyClosedFmt, sess.Lead.QuoteID), nil
	}

	// Fields stay mutable until the lead is persisted.
	if sess.Stage == statex.StageCollecting || sess.Stage == statex.StageReadyForQuote {
		fields, err := a.extractor.Extract(ctx, contractx.ExtractRequest{
			UserMessage: text,
			Known:       sess.Lead,
		})
		if err != nil {
			return "", err
		}
		fields.MergeInto(&sess.Lead)
		sess.RefreshStage(now)
	}

	reply := a.advance(ctx, sess, now)

	if err := a.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("save intake session: %w", err)
	}
	return reply, nil
}

func (a *Agent) loadOrCreate(ctx context.Context, sessionID string, now time.Time) (*statex.Session, error) {
	sess, err := a.store.Load(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, err
	}
	return statex.NewSession(sessionID, now), nil
}

// advance pushes the session as far as this turn allows. A tool failure
// stops the chain at its stage: persistence is never attempted without a
// valid quote id, and notification is never attempted without a persisted
// lead. Retries happen only through a later user-driven turn.
func (a *Agent) advance(ctx context.Context, sess *statex.Session, now time.Time) string {
	if sess.Stage == statex.StageCollecting {
		return fmt.Sprintf(missingFieldsFmt, joinFields(sess.MissingFields()))
	}

	if sess.Stage == statex.StageReadyForQuote {
		result := a.registry.Execute(ctx, contractx.ToolRequest{Tool: toolx.ToolGenerateQuoteID})
		if !result.Outcome.OK {
			log.Warn().Str("kind", string(result.Outcome.Kind)).Msg("quote id generation failed")
			return result.Outcome.Message + " Your details are saved; please try again in a moment."
		}
		if err := sess.MarkQuoteGenerated(result.Outcome.Message, now); err != nil {
			return fmt.Sprintf("Error: could not record the quote ID. %v", err)
		}
	}

	if sess.Stage == statex.StageQuoteGenerated {
		result := a.registry.Execute(ctx, contractx.ToolRequest{
			Tool: toolx.ToolSaveLead,
			Args: map[string]any{
				"quote_id":     sess.Lead.QuoteID,
				"full_name":    sess.Lead.FullName,
				"email":        sess.Lead.Email,
				"phone_number": sess.Lead.PhoneNumber,
				"age":          sess.Lead.Age,
				"location":     sess.Lead.Location,
			},
		})
		if !result.Outcome.OK {
			log.Warn().Str("kind", string(result.Outcome.Kind)).Msg("lead persistence failed")
			return result.Outcome.Message + " Your quote ID is reserved; please try again in a moment."
		}
		if err := sess.MarkPersisted(now); err != nil {
			return fmt.Sprintf("Error: could not record the saved lead. %v", err)
		}
	}

	if sess.Stage == statex.StagePersisted {
		result := a.registry.Execute(ctx, contractx.ToolRequest{
			Tool: toolx.ToolSendEmail,
			Args: map[string]any{
				"to_email":  sess.Lead.Email,
				"quote_id":  sess.Lead.QuoteID,
				"full_name": sess.Lead.FullName,
			},
		})
		if result.Outcome.OK {
			if err := sess.MarkNotified(result.Outcome.Message, now); err != nil {
				return fmt.Sprintf("Error: could not record the notification. %v", err)
			}
		} else {
			// A persisted-but-unnotified lead is an allowed terminal
			// substate; the failure string is still surfaced.
			log.Warn().Str("kind", string(result.Outcome.Kind)).Msg("email notification failed")
			sess.EmailMessage = result.Outcome.Message
		}
	}

	if err := sess.Close(now); err != nil {
		return fmt.Sprintf("Error: could not close the intake. %v", err)
	}
	return a.closingReply(sess)
}

// closingReply contains the quote id and the complete, unabridged email
// tool output. Downstream consumers rely on the literal content; nothing
// here paraphrases it.
func (a *Agent) closingReply(sess *statex.Session) string {
	closing := fmt.Sprintf(closingStatementFmt, sess.Lead.QuoteID)
	email := sess.EmailMessage
	if email == "" {
		return closing
	}
	return closing + "\n\n" + emailIntroLine + "\n" + email
}

// joinFields renders missing field names as natural prose, e.g.
// "phone number, age, and location".
func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return fields[0]
	case 2:
		return fields[0] + " and " + fields[1]
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + ", and " + fields[len(fields)-1]
	}
}
