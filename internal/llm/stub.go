package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StubProvider produces deterministic responses without touching the
// network. It backs tests and offline development (provider "stub" in
// config). The zero value is ready to use.
type StubProvider struct {
	mu       sync.Mutex
	scripted []*Result
	failWith error
	calls    []*Request
}

// NewStubProvider creates a stub provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

// Name returns the provider identifier.
func (p *StubProvider) Name() string { return "stub" }

// Available is always true; the stub needs nothing.
func (p *StubProvider) Available() bool { return true }

// Script queues results to return in order. Once drained, the
// deterministic echo takes over again.
func (p *StubProvider) Script(results ...*Result) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripted = append(p.scripted, results...)
	return p
}

// Fail makes every following call return err. Fail(nil) clears it.
func (p *StubProvider) Fail(err error) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
	return p
}

// Calls returns a copy of every request seen so far.
func (p *StubProvider) Calls() []*Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Request, len(p.calls))
	copy(out, p.calls)
	return out
}

// Generate replies with the next scripted result, or a deterministic
// echo of the last user message.
func (p *StubProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)

	if p.failWith != nil {
		return nil, p.failWith
	}
	if len(p.scripted) > 0 {
		r := p.scripted[0]
		p.scripted = p.scripted[1:]
		return r, nil
	}

	content := "I have nothing to respond to yet."
	if last := lastUserMessage(req); last != "" {
		content = fmt.Sprintf("Let me think about %q. Here is where I would start.", truncateRunes(last, 80))
	}

	return &Result{
		Content:    content,
		Confidence: 1,
		Meta: Meta{
			Provider: "stub",
			Model:    "stub",
		},
	}, nil
}

func lastUserMessage(req *Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return strings.TrimSpace(req.Messages[i].Content)
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
