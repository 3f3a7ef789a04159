// Package dispatch implements the bounded tool-call conversation loop
// shared by all agents: send the transcript to the reasoning backend,
// execute any requested tool invocations in order, feed the results
// back, and repeat until a final answer arrives or the round cap is
// reached.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/policy"
	"github.com/finpulse/aicomply/internal/tools"
)

// Driver runs tool-dispatch conversations. A single Driver is safe for
// concurrent runs: each run owns its transcript and round counter
// exclusively.
type Driver struct {
	gate *policy.Engine
	log  zerolog.Logger
}

// New creates a driver. The policy gate may be nil, in which case all
// tool invocations are allowed.
func New(gate *policy.Engine, log zerolog.Logger) *Driver {
	return &Driver{gate: gate, log: log}
}

// Run executes one task to a terminal result. It never returns an
// error: backend failures, malformed output and the round cap all
// surface as discriminated TerminalResults.
func (d *Driver) Run(ctx context.Context, req domain.TaskRequest, reg *tools.Registry, be backend.Backend) *domain.TerminalResult {
	maxRounds := req.MaxRounds
	if maxRounds <= 0 {
		maxRounds = domain.DefaultMaxRounds
	}

	transcript := domain.NewTranscript(req.Instructions, req.Params)
	menu := reg.List()
	log := d.log.With().Str("task_kind", string(req.Kind)).Logger()

	for round := 1; round <= maxRounds; round++ {
		// Cancellation is honored at round boundaries; an in-flight
		// handler is allowed to complete first.
		select {
		case <-ctx.Done():
			log.Warn().Int("round", round).Msg("run cancelled")
			return &domain.TerminalResult{
				Kind:       domain.TerminalCancelled,
				Rounds:     round - 1,
				Error:      ctx.Err().Error(),
				Transcript: transcript,
			}
		default:
		}

		reply, err := be.Send(ctx, transcript, menu)
		if err != nil {
			return d.backendFailure(transcript, round-1, err)
		}

		if len(reply.Invocations) == 0 {
			return d.finalize(req, transcript, round, reply.Final)
		}

		transcript.Append(domain.Entry{Kind: domain.EntryInvocations, Invocations: reply.Invocations})

		results := make([]domain.ToolResult, 0, len(reply.Invocations))
		for _, inv := range reply.Invocations {
			results = append(results, d.execute(ctx, reg, req.Kind, inv))
		}
		transcript.Append(domain.Entry{Kind: domain.EntryResults, Results: results})

		log.Debug().Int("round", round).Int("invocations", len(reply.Invocations)).Msg("dispatch round complete")
	}

	log.Warn().Int("max_rounds", maxRounds).Msg("round limit exceeded")
	return &domain.TerminalResult{
		Kind:       domain.TerminalRoundLimitExceeded,
		Rounds:     maxRounds,
		Error:      fmt.Sprintf("no final answer within %d rounds", maxRounds),
		Transcript: transcript,
	}
}

// execute runs one invocation in isolation. Unknown tools, argument
// violations, policy blocks, handler errors and handler panics all
// degrade to a handler-error result fed back to the backend.
func (d *Driver) execute(ctx context.Context, reg *tools.Registry, kind domain.TaskKind, inv domain.ToolInvocation) (result domain.ToolResult) {
	result = domain.ToolResult{
		InvocationID: inv.InvocationID,
		ToolName:     inv.Name,
		Status:       domain.ToolResultHandlerError,
	}

	def, ok := reg.Get(inv.Name)
	if !ok {
		result.Message = "unknown tool"
		return result
	}

	if err := reg.ValidateArgs(inv.Name, inv.Args); err != nil {
		result.Message = fmt.Sprintf("invalid tool arguments: %v", err)
		return result
	}

	if d.gate != nil {
		decision, err := d.gate.Evaluate(ctx, policy.Input{
			TaskKind: string(kind),
			ToolName: inv.Name,
			Args:     inv.Args,
		})
		if err != nil {
			result.Message = fmt.Sprintf("policy evaluation failed: %v", err)
			return result
		}
		if decision == policy.DecisionBlock {
			result.Message = "blocked by tool policy"
			return result
		}
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("tool", inv.Name).Any("panic", r).Msg("tool handler panicked")
			result = domain.ToolResult{
				InvocationID: inv.InvocationID,
				ToolName:     inv.Name,
				Status:       domain.ToolResultHandlerError,
				Message:      fmt.Sprintf("handler panic: %v", r),
			}
		}
	}()

	payload, err := def.Handler(ctx, inv.Args)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	result.Status = domain.ToolResultOK
	result.Payload = payload
	result.Message = ""
	return result
}

// finalize validates a final answer against the task's output schema.
func (d *Driver) finalize(req domain.TaskRequest, transcript *domain.Transcript, round int, final string) *domain.TerminalResult {
	transcript.Append(domain.Entry{Kind: domain.EntryAssistant, Text: final})

	var output map[string]any
	if err := json.Unmarshal([]byte(final), &output); err != nil {
		return &domain.TerminalResult{
			Kind:       domain.TerminalMalformedOutput,
			Rounds:     round - 1,
			Error:      fmt.Sprintf("final answer is not a JSON object: %v", err),
			Transcript: transcript,
		}
	}

	if len(req.OutputSchema) > 0 {
		res, err := gojsonschema.Validate(
			gojsonschema.NewBytesLoader(req.OutputSchema),
			gojsonschema.NewGoLoader(output),
		)
		if err != nil {
			return &domain.TerminalResult{
				Kind:       domain.TerminalMalformedOutput,
				Rounds:     round - 1,
				Error:      fmt.Sprintf("output schema validation: %v", err),
				Transcript: transcript,
			}
		}
		if !res.Valid() {
			return &domain.TerminalResult{
				Kind:       domain.TerminalMalformedOutput,
				Rounds:     round - 1,
				Error:      fmt.Sprintf("final answer does not match output shape: %s", res.Errors()[0]),
				Transcript: transcript,
			}
		}
	}

	return &domain.TerminalResult{
		Kind:       domain.TerminalDone,
		Output:     output,
		Rounds:     round - 1,
		Transcript: transcript,
	}
}

func (d *Driver) backendFailure(transcript *domain.Transcript, rounds int, err error) *domain.TerminalResult {
	kind := domain.TerminalBackendUnavailable
	if errors.Is(err, domain.ErrBackendTimeout) {
		kind = domain.TerminalBackendTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.TerminalBackendTimeout
	} else if errors.Is(err, context.Canceled) {
		kind = domain.TerminalCancelled
	}
	d.log.Warn().Err(err).Str("terminal", string(kind)).Msg("backend call failed")
	return &domain.TerminalResult{
		Kind:       kind,
		Rounds:     rounds,
		Error:      err.Error(),
		Transcript: transcript,
	}
}
