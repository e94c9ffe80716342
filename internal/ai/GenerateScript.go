package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"script_ai_server/internal/ai/prompts"
	"script_ai_server/internal/ai/utils"
	"script_ai_server/internal/metrics"
	"script_ai_server/internal/types"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// go-openai drops zero temperature/top_p (omitempty), so the smallest positive
// float32 stands in for "fully deterministic".
const deterministic = math.SmallestNonzeroFloat32

type runState int

const (
	stateAttempting runState = iota
	stateSucceeded
	stateFailed
)

func (s runState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// generationRun is the state of one Generate call. Nothing outlives the call.
type generationRun struct {
	attempt int
	state   runState
	result  types.GenerationResult
	lastErr error
}

// Generate asks the model for files up to MaxAttempts times and returns the first
// well-formed answer. It never returns an error: every failure ends up as the
// failure variant of GenerationResult carrying FailureMessage.
func (g *Generator) Generate(ctx context.Context, req types.GenerationRequest) types.GenerationResult {
	log := g.logger.With().Str("stack", req.Stack).Logger()
	chatReq := g.buildChatRequest(req)

	run := &generationRun{attempt: 1, state: stateAttempting}
	for run.state == stateAttempting {
		g.step(ctx, run, chatReq, log)
	}

	if run.state == stateSucceeded {
		metrics.IncResult("success")
		log.Info().
			Str("state", run.state.String()).
			Int("attempt", run.attempt).
			Int("files", len(run.result.Files)).
			Msg("AI generated a valid response")
		return run.result
	}

	status := "exhausted"
	if ctx.Err() != nil {
		status = "canceled"
	}
	metrics.IncResult(status)
	log.Error().
		Err(fmt.Errorf("%w after %d attempt(s): %w", ErrExhausted, run.attempt, run.lastErr)).
		Str("status", status).
		Str("state", run.state.String()).
		Msg(FailureMessage)
	return run.result
}

// step runs Attempting(k) and moves the run to its next state.
func (g *Generator) step(ctx context.Context, run *generationRun, chatReq openai.ChatCompletionRequest, log zerolog.Logger) {
	files, err := g.attempt(ctx, chatReq, log)
	if err == nil {
		run.state = stateSucceeded
		run.result = types.Succeeded(files)
		return
	}
	run.lastErr = err

	log.Error().
		Err(err).
		Int("attempt", run.attempt).
		Int("max_attempts", g.cfg.MaxAttempts).
		Msg("AI attempt failed")

	if ctx.Err() != nil || run.attempt >= g.cfg.MaxAttempts {
		g.fail(run)
		return
	}

	delay := g.backoff.Next(run.attempt)
	log.Debug().Dur("delay", delay).Msg("retrying AI request")
	if err := g.wait(ctx, delay); err != nil {
		run.lastErr = err
		g.fail(run)
		return
	}
	run.attempt++
}

func (g *Generator) fail(run *generationRun) {
	run.state = stateFailed
	run.result = types.Failed(FailureMessage)
}

// attempt performs one call -> extract -> validate cycle.
func (g *Generator) attempt(ctx context.Context, chatReq openai.ChatCompletionRequest, log zerolog.Logger) (files []types.GeneratedFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncAttempt(metrics.OutcomeTransport)
			files, err = nil, fmt.Errorf("%w: panic in chat client: %v", ErrTransport, r)
		}
	}()

	callCtx := ctx
	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(callCtx, chatReq)
	metrics.ObserveRequest(time.Since(start))
	if err != nil {
		class := utils.ClassifyError(err)
		metrics.IncTransportError(class)
		metrics.IncAttempt(metrics.OutcomeTransport)
		return nil, fmt.Errorf("%w (%s): %w", ErrTransport, class, err)
	}
	if len(resp.Choices) == 0 {
		metrics.IncAttempt(metrics.OutcomeTransport)
		return nil, fmt.Errorf("%w: no choices returned", ErrTransport)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Debug().Str("content", content).Msg("raw AI response")

	extracted := g.extractor.Extract(content)
	if !extracted.Recovered() {
		metrics.IncAttempt(metrics.OutcomeMalformed)
		return nil, ErrMalformedOutput
	}

	shape := ValidateShape(extracted.Value)
	if !shape.Valid {
		metrics.IncAttempt(metrics.OutcomeShape)
		return nil, fmt.Errorf("%w: %s", ErrShapeViolation, shape.Reason)
	}

	metrics.IncAttempt(metrics.OutcomeSuccess)
	log.Debug().Str("strategy", string(extracted.Strategy)).Msg("AI response parsed")
	return shape.Files, nil
}

func (g *Generator) buildChatRequest(req types.GenerationRequest) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.GetScriptSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompts.GetScriptUserPrompt(req.Stack, req.Description)},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: deterministic,
		TopP:        deterministic,
	}
}
