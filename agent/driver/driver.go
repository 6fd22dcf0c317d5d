// Package driver runs the interactive chat loop: read a line, hand it to
// the support agent, print the reply, until the user quits. Every user and
// assistant message is mirrored to the transcript sink.
package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	supportx "github.com/abhaygunhalkar/insurance-agents/agent/agents/support"
	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	runtimex "github.com/abhaygunhalkar/insurance-agents/agent/runtime"
)

const (
	quitSentinel = "quit"
	prompt       = "You: "
	greeting     = "Welcome! Ask me anything about our life insurance products, or tell me if you'd like a quote. Type 'quit' to exit."
	farewell     = "Goodbye!"
	errorReply   = "Sorry, something went wrong: %v. Please try again."
)

// TurnHandler is the conversational surface the driver talks to.
type TurnHandler interface {
	ID() string
	HandleTurn(ctx context.Context, req supportx.TurnRequest) (string, error)
}

type Driver struct {
	agent      TurnHandler
	transcript contractx.TranscriptSink
	in         *bufio.Scanner
	out        io.Writer
	now        func() time.Time
}

func New(agent TurnHandler, transcript contractx.TranscriptSink, in io.Reader, out io.Writer) (*Driver, error) {
	if agent == nil {
		return nil, errors.New("support agent is required")
	}
	if in == nil || out == nil {
		return nil, errors.New("input and output streams are required")
	}
	return &Driver{
		agent:      agent,
		transcript: transcript,
		in:         bufio.NewScanner(in),
		out:        out,
		now:        time.Now,
	}, nil
}

// Run drives the conversation until the quit sentinel, end of input, or
// context cancellation. One session and one thread span the whole run.
func (d *Driver) Run(ctx context.Context) error {
	sessionID := uuid.NewString()
	thread := runtimex.NewThread()

	log.Info().Str("session", sessionID).Str("thread", thread.ID).Msg("chat session started")
	fmt.Fprintln(d.out, greeting)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(d.out, prompt)
		if !d.in.Scan() {
			if err := d.in.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(d.out)
			return nil
		}

		text := strings.TrimSpace(d.in.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, quitSentinel) {
			fmt.Fprintln(d.out, farewell)
			return nil
		}

		thread.Append(runtimex.Message{Role: runtimex.RoleUser, Content: text})
		d.record(ctx, thread.ID, runtimex.RoleUser, "", text)

		reply, err := d.agent.HandleTurn(ctx, supportx.TurnRequest{
			SessionID: sessionID,
			Text:      text,
			Thread:    thread,
		})
		if err != nil {
			log.Error().Err(err).Str("session", sessionID).Msg("turn failed")
			fmt.Fprintf(d.out, "Agent: "+errorReply+"\n", err)
			continue
		}

		d.record(ctx, thread.ID, runtimex.RoleAssistant, d.agent.ID(), reply)
		fmt.Fprintf(d.out, "Agent: %s\n", reply)
	}
}

func (d *Driver) record(ctx context.Context, threadID, role, agentID, content string) {
	if d.transcript == nil {
		return
	}
	err := d.transcript.Append(ctx, contractx.TranscriptEntry{
		ThreadID: threadID,
		Role:     role,
		AgentID:  agentID,
		Content:  content,
		At:       d.now().UTC(),
	})
	if err != nil {
		// The audit trail must never block the conversation.
		log.Warn().Err(err).Msg("transcript append failed")
	}
}
