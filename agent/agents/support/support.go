// Package support implements the FAQ-answering agent and its hand-off to
// the lead-generation agent. FAQ answers are grounded on the document
// search index; delegated replies are relayed byte-for-byte.
package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	runtimex "github.com/abhaygunhalkar/insurance-agents/agent/runtime"
	statex "github.com/abhaygunhalkar/insurance-agents/agent/state"
	toolx "github.com/abhaygunhalkar/insurance-agents/agent/tool"
)

// DefaultAgentID is a default; the effective id is injected configuration.
const DefaultAgentID = "Life_Insurance_Customer_Support_Agent"

const (
	// FallbackSentence is the fixed grounding-only reply for questions the
	// FAQ corpus cannot answer. It is returned verbatim, never paraphrased.
	FallbackSentence = "I'm sorry, that information is not available in my current resources."

	// ProposalSentence offers the hand-off to the lead-generation agent.
	ProposalSentence = "I can connect you with our Lead Generation specialist who will help you get started. Would you like me to do that?"

	// UnavailableSentence is the graceful degradation when the delegated
	// agent cannot be invoked.
	UnavailableSentence = "I'm sorry, our quoting service is temporarily unavailable. I'm happy to answer any questions about our life insurance products."

	// DeclineReply acknowledges a declined hand-off.
	DeclineReply = "No problem. I'm happy to answer any other questions about our life insurance products."
)

var ErrInvalidTurn = errors.New("turn is missing session id, text, or thread")

// TurnRequest is one user turn against the support agent.
type TurnRequest struct {
	SessionID string
	Text      string
	Thread    *runtimex.Thread
}

type TurnReply struct {
	Text string
}

type route string

const (
	routeDelegate route = "delegate_path"
	routeConsent  route = "consent_path"
	routePropose  route = "propose_path"
	routeFAQ      route = "faq_path"
)

type turnState struct {
	Req     TurnRequest
	Session *statex.Session
	Route   route
	Now     time.Time
}

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

// Agent routes each turn: an active delegation forwards to the lead agent,
// a pending consent resolves it, purchase intent proposes the hand-off,
// and everything else is answered from the FAQ corpus.
type Agent struct {
	agentID    string
	store      statex.Store
	registry   *toolx.Registry
	classifier contractx.IntentClassifier
	index      contractx.SearchIndex
	faqLoop    *runtimex.Loop

	runner compose.Runnable[TurnRequest, TurnReply]
	now    func() time.Time
}

func New(
	cfg Config,
	store statex.Store,
	registry *toolx.Registry,
	classifier contractx.IntentClassifier,
	index contractx.SearchIndex,
	faqLoop *runtimex.Loop,
	opts ...Option,
) (*Agent, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if classifier == nil {
		return nil, errors.New("intent classifier is required")
	}
	if index == nil {
		return nil, errors.New("search index is required")
	}
	if faqLoop == nil {
		return nil, errors.New("faq loop is required")
	}

	agentID := strings.TrimSpace(cfg.AgentID)
	if agentID == "" {
		agentID = DefaultAgentID
	}

	a := &Agent{
		agentID:    agentID,
		store:      store,
		registry:   registry,
		classifier: classifier,
		index:      index,
		faqLoop:    faqLoop,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	runner, err := a.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.runner = runner
	return a, nil
}

func (a *Agent) ID() string {
	return a.agentID
}

// HandleTurn processes one user turn and returns the reply to render.
func (a *Agent) HandleTurn(ctx context.Context, req TurnRequest) (string, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Text = strings.TrimSpace(req.Text)
	if req.SessionID == "" || req.Text == "" || req.Thread == nil {
		return "", ErrInvalidTurn
	}

	out, err := a.runner.Invoke(ctx, req)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

func (a *Agent) compileTurnGraph(ctx context.Context) (compose.Runnable[TurnRequest, TurnReply], error) {
	graph := compose.NewGraph[TurnRequest, TurnReply]()

	if err := graph.AddLambdaNode("prepare",
		compose.InvokableLambda(func(ctx context.Context, req TurnRequest) (*turnState, error) {
			return a.prepare(ctx, req)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node prepare: %w", err)
	}

	paths := map[route]func(context.Context, *turnState) (TurnReply, error){
		routeDelegate: a.delegatePath,
		routeConsent:  a.consentPath,
		routePropose:  a.proposePath,
		routeFAQ:      a.faqPath,
	}
	for name, fn := range paths {
		fn := fn
		if err := graph.AddLambdaNode(string(name),
			compose.InvokableLambda(func(ctx context.Context, in *turnState) (TurnReply, error) {
				if in == nil {
					return TurnReply{}, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
				}
				return fn(ctx, in)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			return string(in.Route), nil
		},
		map[string]bool{
			string(routeDelegate): true,
			string(routeConsent):  true,
			string(routePropose):  true,
			string(routeFAQ):      true,
		},
	)

	if err := graph.AddEdge(compose.START, "prepare"); err != nil {
		return nil, fmt.Errorf("add edge start->prepare: %w", err)
	}
	if err := graph.AddBranch("prepare", branch); err != nil {
		return nil, fmt.Errorf("add turn branch: %w", err)
	}
	for name := range paths {
		if err := graph.AddEdge(string(name), compose.END); err != nil {
			return nil, fmt.Errorf("add edge %s->end: %w", name, err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("support.turn_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile support turn graph: %w", err)
	}
	return runner, nil
}

func (a *Agent) prepare(ctx context.Context, req TurnRequest) (*turnState, error) {
	now := a.now().UTC()
	sess, err := a.loadOrCreate(ctx, req.SessionID, now)
	if err != nil {
		return nil, err
	}

	st := &turnState{Req: req, Session: sess, Now: now}
	switch {
	case sess.Delegated:
		st.Route = routeDelegate
	case sess.AwaitingConsent:
		st.Route = routeConsent
	default:
		intent, err := a.classifier.Classify(ctx, req.Text)
		if err != nil {
			// A broken classifier should not take the agent down; fall
			// back to answering from the FAQ corpus.
			log.Warn().Err(err).Msg("intent classification failed")
			intent = contractx.IntentQuestion
		}
		if intent == contractx.IntentPurchase {
			st.Route = routePropose
		} else {
			st.Route = routeFAQ
		}
	}
	return st, nil
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

// delegatePath forwards the turn across the delegation boundary through the
// declared connected-agent tool and relays the result without modification:
// every quote id and every line of the rendered email reaches the user
// character-for-character.
func (a *Agent) delegatePath(ctx context.Context, st *turnState) (TurnReply, error) {
	if !a.registry.Has(toolx.ToolConnectLeadGeneration) {
		return a.demoteDelegation(ctx, st)
	}

	result := a.registry.Execute(ctx, contractx.ToolRequest{
		Tool: toolx.ToolConnectLeadGeneration,
		Args: map[string]any{
			"session_id": st.Req.SessionID,
			"message":    st.Req.Text,
		},
	})
	if !result.Outcome.OK {
		log.Warn().Str("detail", result.Outcome.Detail).Msg("delegation failed")
		return a.demoteDelegation(ctx, st)
	}

	// The delegated agent owns the session while the intake is active; it
	// has already persisted any stage change, so this path must not save
	// the pre-delegation copy.
	st.Req.Thread.Append(runtimex.Message{
		Role:    runtimex.RoleAssistant,
		Content: result.Outcome.Message,
		AgentID: a.agentID,
	})
	return TurnReply{Text: result.Outcome.Message}, nil
}

func (a *Agent) consentPath(ctx context.Context, st *turnState) (TurnReply, error) {
	st.Session.AwaitingConsent = false

	if !isAffirmative(st.Req.Text) {
		st.Session.Touch(st.Now)
		if err := a.store.Save(ctx, st.Session); err != nil {
			return TurnReply{}, fmt.Errorf("save session: %w", err)
		}
		return a.appendReply(st, DeclineReply), nil
	}

	if !a.registry.Has(toolx.ToolConnectLeadGeneration) {
		st.Session.Touch(st.Now)
		if err := a.store.Save(ctx, st.Session); err != nil {
			return TurnReply{}, fmt.Errorf("save session: %w", err)
		}
		return a.appendReply(st, UnavailableSentence), nil
	}

	st.Session.Delegated = true
	st.Session.Touch(st.Now)
	if err := a.store.Save(ctx, st.Session); err != nil {
		return TurnReply{}, fmt.Errorf("save session: %w", err)
	}
	return a.delegatePath(ctx, st)
}

func (a *Agent) proposePath(ctx context.Context, st *turnState) (TurnReply, error) {
	if !a.registry.Has(toolx.ToolConnectLeadGeneration) {
		return a.reply(ctx, st, UnavailableSentence)
	}

	st.Session.AwaitingConsent = true
	st.Session.Touch(st.Now)
	if err := a.store.Save(ctx, st.Session); err != nil {
		return TurnReply{}, fmt.Errorf("save session: %w", err)
	}
	return a.appendReply(st, ProposalSentence), nil
}

// faqPath answers from the FAQ corpus only. An empty search result short-
// circuits to the fixed fallback sentence before any model call, so a
// question with no matching content can never produce a fabricated answer.
func (a *Agent) faqPath(ctx context.Context, st *turnState) (TurnReply, error) {
	snippets, err := a.index.Search(ctx, st.Req.Text)
	if err != nil {
		log.Warn().Err(err).Msg("faq pre-search failed")
		return a.reply(ctx, st, FallbackSentence)
	}
	if len(snippets) == 0 {
		return a.reply(ctx, st, FallbackSentence)
	}

	run := a.faqLoop.Execute(ctx, st.Req.Thread)
	if run.Status != runtimex.RunCompleted {
		return TurnReply{}, fmt.Errorf("support run %s failed: %s", run.ID, run.Err)
	}
	return TurnReply{Text: run.Output}, nil
}

// demoteDelegation hands the session back to the FAQ flow after a failed
// hand-off, so an outage in the delegated agent cannot trap the user. The
// session is reloaded first: the delegated agent may have persisted lead
// fields before failing, and those must survive.
func (a *Agent) demoteDelegation(ctx context.Context, st *turnState) (TurnReply, error) {
	sess, err := a.loadOrCreate(ctx, st.Req.SessionID, st.Now)
	if err != nil {
		sess = st.Session
	}
	sess.Delegated = false
	sess.AwaitingConsent = false
	sess.Touch(st.Now)
	if err := a.store.Save(ctx, sess); err != nil {
		return TurnReply{}, fmt.Errorf("save session: %w", err)
	}
	st.Session = sess
	return a.appendReply(st, UnavailableSentence), nil
}

// reply persists the session (so a lazily created one exists) and appends
// the reply to the thread.
func (a *Agent) reply(ctx context.Context, st *turnState, text string) (TurnReply, error) {
	st.Session.Touch(st.Now)
	if err := a.store.Save(ctx, st.Session); err != nil {
		return TurnReply{}, fmt.Errorf("save session: %w", err)
	}
	return a.appendReply(st, text), nil
}

func (a *Agent) appendReply(st *turnState, text string) TurnReply {
	st.Req.Thread.Append(runtimex.Message{
		Role:    runtimex.RoleAssistant,
		Content: text,
		AgentID: a.agentID,
	})
	return TurnReply{Text: text}
}

var affirmatives = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "please", "connect", "go ahead", "y"}

func isAffirmative(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, candidate := range affirmatives {
		if text == candidate || strings.HasPrefix(text, candidate+" ") || strings.HasPrefix(text, candidate+",") {
			return true
		}
	}
	return false
}
