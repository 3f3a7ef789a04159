// Package backend abstracts the reasoning backend the dispatch driver
// converses with. The driver only ever sees the Backend interface; the
// concrete transport is an external collaborator concern.
package backend

import (
	"context"

	"github.com/finpulse/aicomply/internal/domain"
)

// Reply is one backend response: either a final answer (raw text, JSON
// expected) or one-or-more tool invocations to execute this round.
// Invocations take precedence when both are set.
type Reply struct {
	Final       string                  `json:"final,omitempty"`
	Invocations []domain.ToolInvocation `json:"invocations,omitempty"`
}

// Backend sends the running transcript plus the tool menu and returns
// the next reply. Implementations must map transport timeouts to
// domain.ErrBackendTimeout and other transport failures to
// domain.ErrBackendUnavailable so the driver can classify them.
type Backend interface {
	Send(ctx context.Context, transcript *domain.Transcript, tools []domain.ToolDefinition) (*Reply, error)
}
