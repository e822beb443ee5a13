package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-chat-agent/internal/domain"
	"github.com/tbourn/go-chat-agent/internal/policy"
	"github.com/tbourn/go-chat-agent/internal/profile"
	"github.com/tbourn/go-chat-agent/internal/tools"
)

// RefusalText is the fixed reply sent for high-risk messages.
const RefusalText = "I can't help with requests involving hacking, stolen credentials, or harmful actions."

// Outcome is the terminal state of one pipeline run.
type Outcome string

// Pipeline outcomes.
const (
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeDisallowed      Outcome = "disallowed"
	OutcomeRefused         Outcome = "refused"
	OutcomeNotReplyWorthy  Outcome = "not_reply_worthy"
	OutcomePlannerDeclined Outcome = "planner_declined"
	OutcomeEmptyReply      Outcome = "empty_reply"
	OutcomeReplied         Outcome = "replied"
	OutcomeSendFailed      Outcome = "send_failed"
	OutcomeFailed          Outcome = "failed"
)

// Store is the persistence the pipeline needs. Every call is one
// self-contained statement.
type Store interface {
	IsProcessed(ctx context.Context, chatID, messageID int64) (bool, error)
	MarkProcessed(ctx context.Context, chatID, messageID int64) (bool, error)
	AppendTurn(ctx context.Context, chatID, userID int64, role, text string, meta map[string]any) error
	RecentTurns(ctx context.Context, chatID int64, limit int) ([]domain.Turn, error)
	AddProfileFact(ctx context.Context, userID int64, key, value string, confidence float64) error
	RecentProfileFacts(ctx context.Context, userID int64, limit int) ([]domain.ProfileFact, error)
}

// Sender delivers a reply to the transport.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// PlanMaker decides whether and how to reply.
type PlanMaker interface {
	Plan(ctx context.Context, sender, text string, contextLines []string) (domain.PlannedAction, error)
}

// ReplyWriter produces reply text.
type ReplyWriter interface {
	Respond(ctx context.Context, in ResponseInput) (string, error)
}

// ToolExecutor runs one named tool and never fails.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) domain.ToolResult
	Has(name string) bool
}

// RuntimeConfig sizes the queue and bounds context and replies.
type RuntimeConfig struct {
	QueueCapacity      int
	Workers            int
	MaxContextMessages int
	MaxReplyChars      int
	ProfileFactsLimit  int
}

// DefaultRuntimeConfig returns the stock sizing.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		QueueCapacity:      200,
		Workers:            3,
		MaxContextMessages: 25,
		MaxReplyChars:      1600,
		ProfileFactsLimit:  8,
	}
}

// Deps are the collaborators of a Runtime.
type Deps struct {
	Store     Store
	Extractor *profile.Extractor
	Planner   PlanMaker
	Responder ReplyWriter
	Tools     ToolExecutor
	Sender    Sender
}

// Runtime owns the bounded queue and the worker pool. Enqueue never blocks;
// Run blocks until its context is cancelled and all workers have returned.
type Runtime struct {
	cfg  RuntimeConfig
	deps Deps

	queue   chan domain.IncomingMessage
	running atomic.Bool
	stopped atomic.Bool
}

// NewRuntime builds a Runtime. Non-positive sizes fall back to defaults.
func NewRuntime(cfg RuntimeConfig, deps Deps) *Runtime {
	def := DefaultRuntimeConfig()
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxContextMessages < 0 {
		cfg.MaxContextMessages = 0
	}
	if cfg.ProfileFactsLimit <= 0 {
		cfg.ProfileFactsLimit = def.ProfileFactsLimit
	}
	if deps.Extractor == nil {
		deps.Extractor = profile.NewExtractor()
	}
	return &Runtime{
		cfg:   cfg,
		deps:  deps,
		queue: make(chan domain.IncomingMessage, cfg.QueueCapacity),
	}
}

// Enqueue offers msg to the queue without blocking. A full queue drops the
// message and returns ErrQueueFull; nothing is written to the store.
func (r *Runtime) Enqueue(msg domain.IncomingMessage) error {
	if r.stopped.Load() {
		return ErrRuntimeStopped
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	select {
	case r.queue <- msg:
		enqueuedTotal.WithLabelValues("accepted").Inc()
		queueDepth.Set(float64(len(r.queue)))
		return nil
	default:
		enqueuedTotal.WithLabelValues("dropped").Inc()
		log.Warn().
			Int64("chat_id", msg.ChatID).
			Int64("message_id", msg.MessageID).
			Int("capacity", cap(r.queue)).
			Msg("queue full, dropping message")
		return ErrQueueFull
	}
}

// QueueDepth returns the number of messages waiting.
func (r *Runtime) QueueDepth() int { return len(r.queue) }

// Run starts the worker pool and blocks until ctx is cancelled. Workers stop
// cooperatively; an in-flight pipeline sees the cancelled context and
// abandons its remaining steps. Writes made before that point stay.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRuntimeRunning
	}
	defer r.stopped.Store(true)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			r.work(gctx, worker)
			return nil
		})
	}
	log.Info().Int("workers", r.cfg.Workers).Int("queue_capacity", cap(r.queue)).Msg("runtime started")
	err := g.Wait()
	log.Info().Int("pending", len(r.queue)).Msg("runtime stopped")
	return err
}

func (r *Runtime) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.queue:
			queueDepth.Set(float64(len(r.queue)))
			r.handle(ctx, worker, msg)
		}
	}
}

// handle runs one pipeline with panic isolation so a bad message never
// takes its worker down.
func (r *Runtime) handle(ctx context.Context, worker int, msg domain.IncomingMessage) {
	lg := log.With().
		Str("run_id", uuid.NewString()).
		Int64("chat_id", msg.ChatID).
		Int64("message_id", msg.MessageID).
		Int("worker", worker).
		Logger()
	ctx = lg.WithContext(ctx)
	start := time.Now()

	outcome := OutcomeFailed
	defer func() {
		if rec := recover(); rec != nil {
			outcome = OutcomeFailed
			lg.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("pipeline panicked")
		}
		outcomesTotal.WithLabelValues(string(outcome)).Inc()
		pipelineDuration.Observe(time.Since(start).Seconds())
	}()

	var err error
	outcome, err = r.Process(ctx, msg)
	lvl := zerolog.DebugLevel
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		lvl = zerolog.InfoLevel
	case err != nil:
		lvl = zerolog.ErrorLevel
	case outcome == OutcomeReplied || outcome == OutcomeRefused:
		lvl = zerolog.InfoLevel
	}
	lg.WithLevel(lvl).
		Err(err).
		Str("outcome", string(outcome)).
		Dur("latency", time.Since(start)).
		Int("text_len", utf8.RuneCountInString(msg.Text)).
		Msg("message processed")
}

// Process runs the full pipeline for one message and reports how it ended.
// It is what each worker calls; it is exported so callers that already own
// concurrency can process synchronously.
func (r *Runtime) Process(ctx context.Context, msg domain.IncomingMessage) (outcome Outcome, err error) {
	ctx, span := otel.Tracer("services/Runtime").Start(ctx, "Process",
		trace.WithAttributes(
			attribute.Int64("chat.id", msg.ChatID),
			attribute.Int64("message.id", msg.MessageID),
		),
	)
	defer func() {
		span.SetAttributes(attribute.String("pipeline.outcome", string(outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(outcome))
		}
		span.End()
	}()

	lg := zerolog.Ctx(ctx)
	st := r.deps.Store

	// 1. dedup
	seen, err := st.IsProcessed(ctx, msg.ChatID, msg.MessageID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		return OutcomeDuplicate, nil
	}

	// 2. marker, then the user turn. A concurrent duplicate loses the insert.
	inserted, err := st.MarkProcessed(ctx, msg.ChatID, msg.MessageID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("mark processed: %w", err)
	}
	if !inserted {
		return OutcomeDuplicate, nil
	}
	userMeta := map[string]any{"sender_name": msg.SenderName, "message_id": msg.MessageID}
	if err := st.AppendTurn(ctx, msg.ChatID, msg.UserID, domain.RoleUser, msg.Text, userMeta); err != nil {
		return OutcomeFailed, fmt.Errorf("append user turn: %w", err)
	}

	// 3. profile facts, best effort
	for _, f := range r.deps.Extractor.Extract(msg.Text) {
		if ferr := st.AddProfileFact(ctx, msg.UserID, f.Key, f.Value, f.Confidence); ferr != nil {
			lg.Warn().Err(ferr).Str("fact_key", f.Key).Msg("profile fact not stored")
		}
	}

	// 4. policy
	decision := policy.Evaluate(msg.Text, r.cfg.MaxReplyChars)
	if !decision.Allowed {
		if decision.Reason != policy.ReasonHighRisk {
			lg.Debug().Str("reason", decision.Reason).Msg("policy disallowed message")
			return OutcomeDisallowed, nil
		}
		if err := r.deps.Sender.Send(ctx, msg.ChatID, RefusalText); err != nil {
			return OutcomeSendFailed, fmt.Errorf("send refusal: %w", err)
		}
		return OutcomeRefused, nil
	}
	if !decision.ShouldReply {
		return OutcomeNotReplyWorthy, nil
	}

	// 5. context
	turns, err := st.RecentTurns(ctx, msg.ChatID, r.cfg.MaxContextMessages)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("recent turns: %w", err)
	}
	contextLines := make([]string, len(turns))
	for i, t := range turns {
		contextLines[i] = t.ContextLine()
	}
	facts, err := st.RecentProfileFacts(ctx, msg.UserID, r.cfg.ProfileFactsLimit)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("profile facts: %w", err)
	}
	factLines := make([]string, len(facts))
	for i, f := range facts {
		factLines[i] = f.String()
	}

	// 6. plan
	plan, err := r.deps.Planner.Plan(ctx, msg.SenderName, msg.Text, contextLines)
	if err != nil {
		return OutcomeFailed, err
	}
	if !plan.ShouldReply || plan.Confidence < MinPlanConfidence {
		lg.Debug().
			Bool("should_reply", plan.ShouldReply).
			Float64("confidence", plan.Confidence).
			Msg("planner declined")
		return OutcomePlannerDeclined, nil
	}

	// 7. tools
	results := r.runTools(ctx, plan.ToolCalls, msg.UserID)
	toolLines := make([]string, len(results))
	toolNames := make([]string, len(results))
	for i, res := range results {
		toolLines[i] = res.Line()
		toolNames[i] = res.Name
	}

	// 8. respond
	reply, err := r.deps.Responder.Respond(ctx, ResponseInput{
		Text:         msg.Text,
		ContextLines: contextLines,
		ToolOutputs:  toolLines,
		ProfileFacts: factLines,
		Intent:       plan.Intent,
		ReplyStyle:   plan.ReplyStyle,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	// 9. clip
	reply = policy.Clip(reply, r.cfg.MaxReplyChars)
	if reply == "" {
		return OutcomeEmptyReply, nil
	}

	// 10. deliver, then record
	if err := r.deps.Sender.Send(ctx, msg.ChatID, reply); err != nil {
		return OutcomeSendFailed, fmt.Errorf("send reply: %w", err)
	}
	assistantMeta := map[string]any{
		"intent":     plan.Intent,
		"confidence": plan.Confidence,
		"rationale":  plan.Rationale,
		"tools":      toolNames,
	}
	if err := st.AppendTurn(ctx, msg.ChatID, msg.UserID, domain.RoleAssistant, reply, assistantMeta); err != nil {
		return OutcomeReplied, fmt.Errorf("append assistant turn: %w", err)
	}
	return OutcomeReplied, nil
}

// runTools executes planned calls in order. Profile recall always receives
// the sender's user id, whatever the planner supplied.
func (r *Runtime) runTools(ctx context.Context, calls []domain.ToolCall, userID int64) []domain.ToolResult {
	if len(calls) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("services/Runtime").Start(ctx, "RunTools",
		trace.WithAttributes(attribute.Int("tool.calls", len(calls))),
	)
	defer span.End()

	out := make([]domain.ToolResult, 0, len(calls))
	for _, c := range calls {
		args := make(map[string]any, len(c.Args)+1)
		for k, v := range c.Args {
			args[k] = v
		}
		if c.Name == tools.KindProfileRecall.String() {
			args["user_id"] = userID
		}
		res := r.deps.Tools.Execute(ctx, c.Name, args)
		observeTool(c.Name, res.OK, r.deps.Tools.Has(c.Name))
		out = append(out, res)
	}
	return out
}
