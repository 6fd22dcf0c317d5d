package tool

import (
	"context"
	"errors"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

const ToolConnectLeadGeneration = "connect_lead_generation"

// DeclareDelegate registers a sub-agent as a callable tool. The outcome
// message is the delegated agent's entire reply; callers relay it
// byte-for-byte.
func DeclareDelegate(r *Registry, delegate contractx.Delegate, desc string) error {
	if r == nil || delegate == nil {
		return errors.New("registry and delegate are required")
	}
	if desc == "" {
		desc = "Handles quote ID creation, lead generation and email notifications for life insurance leads."
	}

	return r.Declare(Declaration{
		Name: ToolConnectLeadGeneration,
		Desc: desc,
		Params: map[string]Param{
			"session_id": {Type: ParamString, Desc: "The conversation session id", Required: true},
			"message":    {Type: ParamString, Desc: "The customer's latest message", Required: true},
			"history":    {Type: ParamString, Desc: "Relevant conversation context", Required: false},
		},
		Handler: delegateHandler(delegate),
	})
}

func delegateHandler(delegate contractx.Delegate) Handler {
	return func(ctx context.Context, args map[string]any) contractx.ToolOutcome {
		sessionID, _ := StringArg(args, "session_id")
		message, _ := StringArg(args, "message")
		history, _ := StringArg(args, "history")

		reply, err := delegate.HandleTurn(ctx, contractx.HandoffContext{
			SessionID:   sessionID,
			UserMessage: message,
			History:     history,
		})
		if err != nil {
			return contractx.Errf(contractx.FailUnavailable, "the lead generation specialist is unavailable. %v", err)
		}
		return contractx.Ok(reply)
	}
}
