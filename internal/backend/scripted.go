package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/finpulse/aicomply/internal/domain"
)

// Step produces the next scripted reply. Steps may inspect the
// transcript, which lets a script derive invocation arguments from
// earlier tool results the way a real backend would.
type Step func(transcript *domain.Transcript) (*Reply, error)

// Scripted is a deterministic Backend replaying a fixed sequence of
// steps. With RepeatLast set, the final step is replayed forever, which
// is how tests exercise the driver's round cap.
type Scripted struct {
	mu         sync.Mutex
	steps      []Step
	next       int
	RepeatLast bool
}

// NewScripted builds a scripted backend from the given steps.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Send replays the next scripted step.
func (s *Scripted) Send(ctx context.Context, transcript *domain.Transcript, tools []domain.ToolDefinition) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.steps) {
		if s.RepeatLast && len(s.steps) > 0 {
			return s.steps[len(s.steps)-1](transcript)
		}
		return nil, fmt.Errorf("scripted backend exhausted after %d steps: %w", len(s.steps), domain.ErrBackendUnavailable)
	}
	step := s.steps[s.next]
	s.next++
	return step(transcript)
}

// Invoke is a static step issuing the given invocations. Invocation
// ids are assigned when absent.
func Invoke(invocations ...domain.ToolInvocation) Step {
	return func(*domain.Transcript) (*Reply, error) {
		out := make([]domain.ToolInvocation, len(invocations))
		for i, inv := range invocations {
			if inv.InvocationID == "" {
				inv.InvocationID = NewInvocationID()
			}
			out[i] = inv
		}
		return &Reply{Invocations: out}, nil
	}
}

// FinalJSON is a static step finishing the run with the JSON encoding
// of the given payload.
func FinalJSON(payload map[string]any) Step {
	return func(*domain.Transcript) (*Reply, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		return &Reply{Final: string(data)}, nil
	}
}

// FinalText is a static step finishing the run with raw text.
func FinalText(text string) Step {
	return func(*domain.Transcript) (*Reply, error) {
		return &Reply{Final: text}, nil
	}
}

// Fail is a static step returning the given error.
func Fail(err error) Step {
	return func(*domain.Transcript) (*Reply, error) {
		return nil, err
	}
}

// NewInvocationID mints a short invocation identifier.
func NewInvocationID() string {
	return "ti_" + uuid.New().String()[:8]
}
