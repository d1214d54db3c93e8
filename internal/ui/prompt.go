package ui

import (
	"context"
	"errors"
	"sync"

	"github.com/abelbrown/hush/internal/gateway"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrPrompterUnbound is returned by Ask before Bind has been called.
var ErrPrompterUnbound = errors.New("ui: prompter has no program")

// Prompter implements gateway.Prompt by showing a modal in the running
// program and waiting for the user's answer.
type Prompter struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// NewPrompter returns an unbound Prompter.
func NewPrompter() *Prompter {
	return &Prompter{}
}

// Bind sets the function used to deliver messages, normally
// (*tea.Program).Send.
func (p *Prompter) Bind(send func(tea.Msg)) {
	p.mu.Lock()
	p.send = send
	p.mu.Unlock()
}

// Ask shows the hide modal and blocks until the user answers or ctx ends.
func (p *Prompter) Ask(ctx context.Context, req gateway.PromptRequest) (gateway.Choice, error) {
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send == nil {
		return gateway.ChoiceCancel, ErrPrompterUnbound
	}

	reply := make(chan gateway.Choice, 1)
	send(PromptRequested{Req: req, Reply: reply})

	select {
	case c := <-reply:
		return c, nil
	case <-ctx.Done():
		return gateway.ChoiceCancel, ctx.Err()
	}
}

var _ gateway.Prompt = (*Prompter)(nil)
