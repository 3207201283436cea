package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/punchagency/ycc-assist/internal/domain"
	"github.com/punchagency/ycc-assist/internal/llm"
)

const systemPersona = `You are the Yacht Crew Center assistant. You help crew members, ` +
	`suppliers and service providers with questions about the marketplace: products, ` +
	`services, bookings, orders and account matters. Answer only from the provided ` +
	`context and tool results. Be concise and friendly. If you are not sure, say so.`

// EscalationMessage replaces any model answer for a turn with no
// grounding: no retrieved context and no tool invoked. An ungrounded
// guess is worse than routing the question to a human.
const EscalationMessage = "I couldn't find an answer to your question in our knowledge base. " +
	"I've forwarded it to our support team, who will get back to you shortly."

// HistoryStore is the slice of chat history the orchestrator depends on.
type HistoryStore interface {
	RecentMessages(ctx context.Context, userID, sessionID string, n int) ([]*domain.Message, error)
	UpsertAppend(ctx context.Context, userID, sessionID string, messages []*domain.Message) error
	DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) error
}

// Notifier delivers escalation notifications, fire-and-forget.
type Notifier interface {
	Enqueue(to, subject, body string)
}

// Options bound the orchestration pipeline.
type Options struct {
	TopK         int           // context chunks per turn
	HistoryLimit int           // prior messages included in the prompt
	Retention    time.Duration // authenticated session retention window
	SupportEmail string        // escalation recipient
}

// Orchestrator executes one conversational turn: retrieve context, call
// the model (with tools for authenticated callers), dispatch tool calls,
// persist history and fall back to escalation when nothing grounded the
// answer. All collaborators are injected; the orchestrator holds no
// global state.
type Orchestrator struct {
	model    llms.Model
	embedder llm.Embedder
	index    VectorIndex
	indexer  *ContextIndexer
	history  HistoryStore
	tools    *ToolDispatcher
	notifier Notifier
	opts     Options
	logger   *zap.Logger
}

// NewOrchestrator creates a new chat orchestrator
func NewOrchestrator(
	model llms.Model,
	embedder llm.Embedder,
	index VectorIndex,
	indexer *ContextIndexer,
	history HistoryStore,
	tools *ToolDispatcher,
	notifier Notifier,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.Retention <= 0 {
		opts.Retention = 30 * 24 * time.Hour
	}
	return &Orchestrator{
		model:    model,
		embedder: embedder,
		index:    index,
		indexer:  indexer,
		history:  history,
		tools:    tools,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// Chat executes one non-streaming turn.
func (o *Orchestrator) Chat(ctx context.Context, caller domain.Caller, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.ErrInvalidRequest
	}

	sessionID := o.resolveSession(req.SessionID)
	contextText := o.retrieveContext(ctx, message)

	messages, err := o.assemblePrompt(ctx, caller, sessionID, contextText, message)
	if err != nil {
		return nil, err
	}

	var callOpts []llms.CallOption
	if caller.Authenticated() {
		callOpts = append(callOpts, llms.WithTools(toolDefs()))
	}

	resp, err := o.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		o.logger.Error("model call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.ErrModelUnavailable
	}
	choice := resp.Choices[0]
	finalResponse := choice.Content

	// Tool dispatch: one follow-up call per tool call, sequentially,
	// each overwriting the final response. The last follow-up wins.
	var invoked []domain.ToolCall
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		result := o.tools.Dispatch(ctx, caller, tc.FunctionCall.Name, tc.FunctionCall.Arguments)

		messages = append(messages,
			llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: []llms.ContentPart{tc},
			},
			llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    result,
				}},
			},
		)

		followUp, err := o.model.GenerateContent(ctx, messages)
		if err != nil {
			o.logger.Error("follow-up model call failed",
				zap.String("tool", tc.FunctionCall.Name), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		}
		if len(followUp.Choices) > 0 {
			finalResponse = followUp.Choices[0].Content
		}
		invoked = append(invoked, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}

	if contextText == "" && len(invoked) == 0 {
		finalResponse = o.escalate(message, caller)
	}

	if caller.Authenticated() {
		o.persistTurn(ctx, caller, sessionID, message, finalResponse, invoked)
	}

	return &domain.ChatResponse{SessionID: sessionID, Response: finalResponse}, nil
}

// ChatStream executes one streaming turn. Tool-calling is intentionally
// disabled while streaming: tokens are forwarded as soon as the model
// produces them, which leaves no point at which a tool round-trip could
// be inserted without buffering the whole response.
func (o *Orchestrator) ChatStream(ctx context.Context, caller domain.Caller, req *domain.ChatRequest) (<-chan domain.StreamChunk, string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, "", domain.ErrInvalidRequest
	}

	sessionID := o.resolveSession(req.SessionID)
	contextText := o.retrieveContext(ctx, message)

	ch := make(chan domain.StreamChunk, 64)

	// Ungrounded turns escalate instead of streaming a guess.
	if contextText == "" {
		go func() {
			defer close(ch)
			response := o.escalate(message, caller)
			ch <- domain.StreamChunk{Content: response, SessionID: sessionID}
			if caller.Authenticated() {
				o.persistTurn(ctx, caller, sessionID, message, response, nil)
			}
			ch <- domain.StreamChunk{Done: true, SessionID: sessionID}
		}()
		return ch, sessionID, nil
	}

	messages, err := o.assemblePrompt(ctx, caller, sessionID, contextText, message)
	if err != nil {
		close(ch)
		return nil, "", err
	}

	go func() {
		defer close(ch)

		var full strings.Builder
		_, err := o.model.GenerateContent(ctx, messages,
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				// The send below can win the select against a cancelled
				// context while the channel has buffer space, so check
				// cancellation explicitly before forwarding.
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				if len(chunk) == 0 {
					return nil
				}
				full.Write(chunk)
				select {
				case ch <- domain.StreamChunk{Content: string(chunk), SessionID: sessionID}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				// Client went away: drop the partial turn, persist nothing.
				o.logger.Info("stream cancelled", zap.String("session", sessionID))
				return
			}
			o.logger.Error("streaming model call failed", zap.Error(err))
			ch <- domain.StreamChunk{Err: "chat service unavailable"}
			return
		}
		if ctx.Err() != nil {
			// Some providers return a clean response even when the
			// streaming callback reported cancellation. A disconnected
			// client never gets its partial turn persisted.
			o.logger.Info("stream cancelled", zap.String("session", sessionID))
			return
		}

		if caller.Authenticated() {
			o.persistTurn(ctx, caller, sessionID, message, full.String(), nil)
		}
		ch <- domain.StreamChunk{Done: true, SessionID: sessionID}
	}()

	return ch, sessionID, nil
}

func (o *Orchestrator) resolveSession(sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	return shortuuid.New()
}

// retrieveContext embeds the query and fetches the top-K chunks.
// Every failure degrades to an empty string; retrieval never blocks a turn.
func (o *Orchestrator) retrieveContext(ctx context.Context, message string) string {
	if o.indexer != nil {
		if err := o.indexer.IndexContext(ctx, false); err != nil {
			o.logger.Warn("context indexing unavailable", zap.Error(err))
		}
	}

	embedding, err := o.embedder.Embed(ctx, message)
	if err != nil {
		return ""
	}

	hits := o.index.Query(ctx, embedding, o.opts.TopK)
	if len(hits) == 0 {
		return ""
	}

	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (o *Orchestrator) assemblePrompt(ctx context.Context, caller domain.Caller, sessionID, contextText, message string) ([]llms.MessageContent, error) {
	system := systemPersona
	if contextText != "" {
		system = "Context:\n" + contextText + "\n\n" + systemPersona
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
	}

	if caller.Authenticated() {
		history, err := o.history.RecentMessages(ctx, caller.UserID, sessionID, o.opts.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		for _, m := range history {
			role := llms.ChatMessageTypeHuman
			if m.Role == domain.RoleAI {
				role = llms.ChatMessageTypeAI
			}
			messages = append(messages, llms.TextParts(role, m.Content))
		}
	}

	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message)), nil
}

func (o *Orchestrator) escalate(query string, caller domain.Caller) string {
	body := "A chat question could not be answered from the knowledge base.\n\n" +
		"Question: " + query + "\n"
	if caller.Authenticated() {
		body += "User: " + caller.UserID + "\n"
	} else {
		body += "User: anonymous\n"
	}
	o.notifier.Enqueue(o.opts.SupportEmail, "Chat escalation", body)
	o.logger.Info("turn escalated to support", zap.Bool("authenticated", caller.Authenticated()))
	return EscalationMessage
}

// persistTurn appends the human and AI messages in one atomic upsert,
// then prunes the user's expired sessions. Failures are logged, not
// surfaced; the answer has already been produced.
func (o *Orchestrator) persistTurn(ctx context.Context, caller domain.Caller, sessionID, userMessage, aiMessage string, toolCalls []domain.ToolCall) {
	err := o.history.UpsertAppend(ctx, caller.UserID, sessionID, []*domain.Message{
		{Role: domain.RoleHuman, Content: userMessage},
		{Role: domain.RoleAI, Content: aiMessage, ToolCalls: toolCalls},
	})
	if err != nil {
		o.logger.Warn("failed to persist chat turn",
			zap.String("session", sessionID), zap.Error(err))
		return
	}

	cutoff := time.Now().UTC().Add(-o.opts.Retention)
	if err := o.history.DeleteOlderThan(ctx, caller.UserID, cutoff); err != nil {
		o.logger.Warn("failed to prune expired sessions",
			zap.String("user", caller.UserID), zap.Error(err))
	}
}
