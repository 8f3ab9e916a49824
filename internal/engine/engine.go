// Package engine routes a question through classification, generation,
// validation and sandboxed execution, and guarantees every outcome except an
// unknown session still yields an answer envelope.
package engine

import (
	"context"
	"log/slog"

	"github.com/Abhi-vish/financial-insights-ai/internal/answer"
	"github.com/Abhi-vish/financial-insights-ai/internal/classifier"
	"github.com/Abhi-vish/financial-insights-ai/internal/codegen"
	"github.com/Abhi-vish/financial-insights-ai/internal/llm"
	"github.com/Abhi-vish/financial-insights-ai/internal/observability"
	"github.com/Abhi-vish/financial-insights-ai/internal/prompt"
	"github.com/Abhi-vish/financial-insights-ai/internal/sandbox"
	"github.com/Abhi-vish/financial-insights-ai/internal/session"
)

const systemPrompt = "You are a data analyst answering questions about an uploaded table. Follow the instructions in each request exactly."

type Engine struct {
	sessions  session.Store
	generator llm.Generator
	executor  *sandbox.Executor
	prompts   *prompt.Builder
	rules     *classifier.Classifier
	logger    *slog.Logger
}

func New(sessions session.Store, generator llm.Generator, executor *sandbox.Executor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions:  sessions,
		generator: generator,
		executor:  executor,
		prompts:   prompt.NewBuilder(),
		rules:     classifier.New(),
		logger:    logger,
	}
}

// Answer resolves one question against a session's dataset. The only error
// it returns is session.ErrSessionNotFound; every other failure is folded
// into the envelope.
func (e *Engine) Answer(ctx context.Context, sessionID, question string) (answer.Envelope, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return answer.Envelope{}, err
	}

	decision := e.rules.Classify(question, sess.Dataset.Schema)
	observability.ObserveClassifierDecision(string(decision.Signal))
	e.logger.DebugContext(ctx, "question classified",
		slog.String("session_id", sess.ID),
		slog.String("query_type", string(decision.Type)),
		slog.String("signal", string(decision.Signal)))

	var envelope answer.Envelope
	switch decision.Type {
	case classifier.QueryLookup:
		envelope = e.answerLookup(ctx, sess, question)
	default:
		envelope = e.answerSummary(ctx, sess, question)
	}

	observability.ObserveQuestion(string(envelope.QueryType))
	return envelope, nil
}

func (e *Engine) answerSummary(ctx context.Context, sess *session.Session, question string) answer.Envelope {
	raw, err := e.generate(ctx, e.prompts.BuildSummary(question, sess.Summary))
	if err != nil {
		e.logger.WarnContext(ctx, "summary generation failed",
			slog.String("session_id", sess.ID),
			slog.Any("error", err))
		return answer.Degraded(classifier.QuerySummary,
			"The language model is unavailable right now; please try again shortly.", 0)
	}
	return answer.FromSummaryResponse(raw)
}

func (e *Engine) answerLookup(ctx context.Context, sess *session.Session, question string) answer.Envelope {
	pipeline, err := e.generatePipeline(ctx, sess, question)
	if err != nil {
		observability.IncrementLookupFallback()
		e.logger.WarnContext(ctx, "lookup path failed, answering from summary",
			slog.String("session_id", sess.ID),
			slog.Any("error", err))
		envelope := e.answerSummary(ctx, sess, question)
		envelope.Insights["lookup_fallback"] = err.Error()
		return envelope
	}

	result, err := e.executor.Execute(ctx, pipeline, sess.Dataset)
	if err != nil {
		kind, _ := sandbox.KindOf(err)
		if kind == sandbox.KindTimeout {
			observability.IncrementSandboxTimeout()
		}
		e.logger.WarnContext(ctx, "lookup execution failed",
			slog.String("session_id", sess.ID),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
		return answer.Degraded(classifier.QueryLookup, degradedReason(kind), result.Elapsed.Milliseconds())
	}

	observability.ObserveSandboxRun(result.Elapsed, result.Truncated)
	return answer.FromLookupResult(result)
}

// generatePipeline asks the model for a pipeline expression and validates it,
// allowing one repair round before giving up.
func (e *Engine) generatePipeline(ctx context.Context, sess *session.Session, question string) (*codegen.Pipeline, error) {
	schema := sess.Dataset.Schema

	raw, err := e.generate(ctx, e.prompts.BuildLookupCode(question, schema, sess.Summary))
	if err != nil {
		return nil, err
	}
	code := llm.StripMarkdownFences(raw)
	pipeline, compileErr := codegen.Compile(code, schema)
	if compileErr == nil {
		return pipeline, nil
	}

	e.logger.DebugContext(ctx, "generated pipeline rejected, requesting repair",
		slog.String("session_id", sess.ID),
		slog.Any("error", compileErr))

	raw, err = e.generate(ctx, e.prompts.BuildLookupRepair(question, code, compileErr.Error(), schema))
	if err != nil {
		return nil, err
	}
	code = llm.StripMarkdownFences(raw)
	pipeline, compileErr = codegen.Compile(code, schema)
	if compileErr != nil {
		return nil, compileErr
	}
	return pipeline, nil
}

func (e *Engine) generate(ctx context.Context, userPrompt string) (string, error) {
	return e.generator.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	})
}

func degradedReason(kind sandbox.Kind) string {
	switch kind {
	case sandbox.KindTimeout:
		return "The lookup was stopped because it exceeded the execution time budget."
	case sandbox.KindResultTooLarge:
		return "The lookup produced more result groups than the service allows."
	default:
		return "The lookup failed while executing against the dataset."
	}
}
