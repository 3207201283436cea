package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/punchagency/ycc-assist/internal/domain"
	"github.com/punchagency/ycc-assist/internal/vector"
)

type fakeModel struct {
	responses     []*llms.ContentResponse
	err           error
	streamPieces  []string
	streamHook    func(i int) // called before piece i is streamed
	keepStreaming bool        // keep sending pieces after the callback errors

	calls   [][]llms.MessageContent
	gotOpts []llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	f.calls = append(f.calls, messages)
	f.gotOpts = append(f.gotOpts, opts)

	if f.err != nil {
		return nil, f.err
	}
	if opts.StreamingFunc != nil {
		for i, piece := range f.streamPieces {
			if f.streamHook != nil {
				f.streamHook(i)
			}
			if err := opts.StreamingFunc(ctx, []byte(piece)); err != nil && !f.keepStreaming {
				return nil, err
			}
		}
	}

	call := len(f.calls) - 1
	if call < len(f.responses) {
		return f.responses[call], nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: strings.Join(f.streamPieces, "")},
	}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func toolCallResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: "",
		ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
		}},
	}}}
}

type fakeHistory struct {
	sessions map[string][]*domain.Message // key: userID/sessionID
	writes   int
	pruned   []time.Time
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{sessions: map[string][]*domain.Message{}}
}

func historyKey(userID, sessionID string) string { return userID + "/" + sessionID }

func (f *fakeHistory) RecentMessages(_ context.Context, userID, sessionID string, n int) ([]*domain.Message, error) {
	msgs := f.sessions[historyKey(userID, sessionID)]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

func (f *fakeHistory) UpsertAppend(_ context.Context, userID, sessionID string, messages []*domain.Message) error {
	key := historyKey(userID, sessionID)
	f.sessions[key] = append(f.sessions[key], messages...)
	f.writes++
	return nil
}

func (f *fakeHistory) DeleteOlderThan(_ context.Context, _ string, cutoff time.Time) error {
	f.pruned = append(f.pruned, cutoff)
	return nil
}

type fakeNotifier struct {
	enqueued []string
}

func (f *fakeNotifier) Enqueue(to, subject, body string) {
	f.enqueued = append(f.enqueued, body)
}

type fakeCatalog struct {
	orders      []*domain.Order
	ordersTotal int
	err         error
}

func (f *fakeCatalog) ListOrders(_ context.Context, userID, status string, limit int) ([]*domain.Order, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.orders, f.ordersTotal, nil
}

func (f *fakeCatalog) ListBookings(_ context.Context, _, _ string, _ int) ([]*domain.Booking, int, error) {
	return nil, 0, f.err
}

func (f *fakeCatalog) SearchProducts(_ context.Context, _, _ string, _ int) ([]*domain.Product, int, error) {
	return nil, 0, f.err
}

func (f *fakeCatalog) SearchServices(_ context.Context, _ string, _ int) ([]*domain.Service, int, error) {
	return nil, 0, f.err
}

type testRig struct {
	model    *fakeModel
	embedder *fakeEmbedder
	index    *fakeIndex
	history  *fakeHistory
	notifier *fakeNotifier
	catalog  *fakeCatalog
	orch     *Orchestrator
}

func newTestRig(model *fakeModel) *testRig {
	rig := &testRig{
		model:    model,
		embedder: &fakeEmbedder{},
		index:    newFakeIndex(),
		history:  newFakeHistory(),
		notifier: &fakeNotifier{},
		catalog:  &fakeCatalog{},
	}
	rig.index.hits = []vector.Hit{
		{ID: "context-0", Content: "Yacht Crew Center connects crew with suppliers.", Score: 0.9},
	}
	rig.orch = NewOrchestrator(
		model,
		rig.embedder,
		rig.index,
		nil, // index maintenance covered by indexer tests
		rig.history,
		NewToolDispatcher(rig.catalog, zap.NewNop()),
		rig.notifier,
		Options{TopK: 3, HistoryLimit: 10, Retention: 30 * 24 * time.Hour, SupportEmail: "support@yachtcrewcenter.com"},
		zap.NewNop(),
	)
	return rig
}

func TestChatEmptyMessageRejected(t *testing.T) {
	rig := newTestRig(&fakeModel{responses: []*llms.ContentResponse{textResponse("hi")}})
	_, err := rig.orch.Chat(context.Background(), domain.AnonymousCaller(), &domain.ChatRequest{Message: "   "})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.Empty(t, rig.model.calls)
}

func TestChatSynthesizesSessionID(t *testing.T) {
	rig := newTestRig(&fakeModel{responses: []*llms.ContentResponse{textResponse("hi")}})
	resp, err := rig.orch.Chat(context.Background(), domain.AnonymousCaller(), &domain.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)

	resp2, err := rig.orch.Chat(context.Background(), domain.AnonymousCaller(), &domain.ChatRequest{Message: "hello", SessionID: "keep-me"})
	require.NoError(t, err)
	require.Equal(t, "keep-me", resp2.SessionID)
}

func TestChatGroundedTurnUsesContext(t *testing.T) {
	rig := newTestRig(&fakeModel{responses: []*llms.ContentResponse{textResponse("we connect crew with suppliers")}})
	resp, err := rig.orch.Chat(context.Background(), domain.AnonymousCaller(), &domain.ChatRequest{Message: "what is ycc?"})
	require.NoError(t, err)
	require.Equal(t, "we connect crew with suppliers", resp.Response)

	// System prompt carries the retrieved chunk.
	first := rig.model.calls[0][0]
	require.Equal(t, llms.ChatMessageTypeSystem, first.Role)
	text := first.Parts[0].(llms.TextContent).Text
	require.Contains(t, text, "connects crew with suppliers")
	require.Empty(t, rig.notifier.enqueued)
}

func TestChatEscalatesWhenUngrounded(t *testing.T) {
	rig := newTestRig(&fakeModel{responses: []*llms.ContentResponse{textResponse("a confident guess")}})
	rig.embedder.failAll = true // no context retrievable

	resp, err := rig.orch.Chat(context.Background(), domain.AnonymousCaller(), &domain.ChatRequest{Message: "do you price-match?"})
	require.NoError(t, err)

	// The model's answer is discarded in favor of the escalation message.
	require.Equal(t, EscalationMessage, resp.Response)
	require.Len(t, rig.notifier.enqueued, 1)
	require.Contains(t, rig.notifier.enqueued[0], "do you price-match?")

	// Anonymous caller: no history write.
	require.Equal(t, 0, rig.history.writes)
}

func TestChatToolsOnlyForAuthenticatedCallers(t *testing.T) {
	rig := newTestRig(&fakeModel{responses: []*llms.ContentResponse{textResponse("hi"), textResponse("hi")}})

	_, err := rig.orch.Chat(context.Background(), domain.AnonymousCaller(), &domain.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	require.Empty(t, rig.model.gotOpts[0].Tools)

	_, err = rig.orch.Chat(context.Background(), domain.AuthenticatedCaller("U1", domain.RoleUser), &domain.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	require.Len(t, rig.model.gotOpts[1].Tools, 4)
}

func TestChatHistoryTruncation(t *testing.T) {
	rig := newTestRig(&fakeModel{responses: []*llms.ContentResponse{textResponse("ok")}})
	caller := domain.AuthenticatedCaller("U1", domain.RoleUser)

	key := historyKey("U1", "s1")
	for i := 0; i < 25; i++ {
		role := domain.RoleHuman
		if i%2 == 1 {
			role = domain.RoleAI
		}
		rig.history.sessions[key] = append(rig.history.sessions[key],
			&domain.Message{Role: role, Content: fmt.Sprintf("msg %d", i)})
	}

	_, err := rig.orch.Chat(context.Background(), caller, &domain.ChatRequest{Message: "latest question", SessionID: "s1"})
	require.NoError(t, err)

	// system + exactly the 10 most recent history messages + new user message
	prompt := rig.model.calls[0]
	require.Len(t, prompt, 12)
	require.Equal(t, "msg 15", prompt[1].Parts[0].(llms.TextContent).Text)
	require.Equal(t, "msg 24", prompt[10].Parts[0].(llms.TextContent).Text)
	require.Equal(t, "latest question", prompt[11].Parts[0].(llms.TextContent).Text)
}

func TestChatToolDispatchFlow(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", "get_orders", `{"status":"pending"}`),
		textResponse("You have 2 pending orders."),
	}}
	rig := newTestRig(model)
	rig.catalog.orders = []*domain.Order{
		{ID: "o1", UserID: "U1", Status: domain.OrderStatusPending},
		{ID: "o2", UserID: "U1", Status: domain.OrderStatusPending},
	}
	rig.catalog.ordersTotal = 2
	caller := domain.AuthenticatedCaller("U1", domain.RoleUser)

	resp, err := rig.orch.Chat(context.Background(), caller, &domain.ChatRequest{Message: "my pending orders?", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "You have 2 pending orders.", resp.Response)
	require.Len(t, model.calls, 2)

	// The follow-up call carries the tool result payload.
	followUp := model.calls[1]
	toolMsg := followUp[len(followUp)-1]
	require.Equal(t, llms.ChatMessageTypeTool, toolMsg.Role)
	payload := toolMsg.Parts[0].(llms.ToolCallResponse)
	require.Equal(t, "call_1", payload.ToolCallID)
	require.Contains(t, payload.Content, `"total":2`)

	// Tool-call metadata is persisted on the AI message.
	persisted := rig.history.sessions[historyKey("U1", "s1")]
	require.Len(t, persisted, 2)
	require.Equal(t, domain.RoleAI, persisted[1].Role)
	require.Len(t, persisted[1].ToolCalls, 1)
	require.Equal(t, "get_orders", persisted[1].ToolCalls[0].Name)

	// Tools were invoked, so no escalation.
	require.Empty(t, rig.notifier.enqueued)
}

func TestChatToolErrorFoldedIntoPayload(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", "get_orders", `{"status":"pending"}`),
		textResponse("Sorry, I could not load your orders."),
	}}
	rig := newTestRig(model)
	rig.catalog.err = errors.New("orders table offline")

	resp, err := rig.orch.Chat(context.Background(), domain.AuthenticatedCaller("U1", domain.RoleUser),
		&domain.ChatRequest{Message: "my orders?", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "Sorry, I could not load your orders.", resp.Response)

	// The failure reaches the model as a well-formed JSON payload.
	followUp := model.calls[1]
	payload := followUp[len(followUp)-1].Parts[0].(llms.ToolCallResponse)
	require.Contains(t, payload.Content, `"error"`)
	require.Contains(t, payload.Content, "orders table offline")
}

func TestChatModelErrorAbortsTurn(t *testing.T) {
	rig := newTestRig(&fakeModel{err: errors.New("upstream 500")})
	_, err := rig.orch.Chat(context.Background(), domain.AuthenticatedCaller("U1", domain.RoleUser),
		&domain.ChatRequest{Message: "hello", SessionID: "s1"})
	require.ErrorIs(t, err, domain.ErrModelUnavailable)

	// Nothing is persisted on the failure path.
	require.Equal(t, 0, rig.history.writes)
}

func TestChatPersistsAndPrunesForAuthenticated(t *testing.T) {
	rig := newTestRig(&fakeModel{responses: []*llms.ContentResponse{textResponse("answer")}})
	caller := domain.AuthenticatedCaller("U1", domain.RoleUser)

	_, err := rig.orch.Chat(context.Background(), caller, &domain.ChatRequest{Message: "question", SessionID: "s1"})
	require.NoError(t, err)

	persisted := rig.history.sessions[historyKey("U1", "s1")]
	require.Len(t, persisted, 2)
	require.Equal(t, domain.RoleHuman, persisted[0].Role)
	require.Equal(t, "question", persisted[0].Content)
	require.Equal(t, domain.RoleAI, persisted[1].Role)
	require.Equal(t, "answer", persisted[1].Content)

	// Retention prune runs after every persisted turn.
	require.Len(t, rig.history.pruned, 1)
	wantCutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	require.WithinDuration(t, wantCutoff, rig.history.pruned[0], time.Minute)
}

func collectStream(t *testing.T, ch <-chan domain.StreamChunk) []domain.StreamChunk {
	t.Helper()
	var chunks []domain.StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestChatStreamForwardsTokens(t *testing.T) {
	rig := newTestRig(&fakeModel{streamPieces: []string{"Welcome ", "aboard", "!"}})
	caller := domain.AuthenticatedCaller("U1", domain.RoleUser)

	ch, sessionID, err := rig.orch.ChatStream(context.Background(), caller, &domain.ChatRequest{Message: "hi", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "s1", sessionID)

	chunks := collectStream(t, ch)
	require.GreaterOrEqual(t, len(chunks), 4)

	var full strings.Builder
	for _, c := range chunks[:len(chunks)-1] {
		full.WriteString(c.Content)
		require.Equal(t, "s1", c.SessionID)
	}
	require.Equal(t, "Welcome aboard!", full.String())

	last := chunks[len(chunks)-1]
	require.True(t, last.Done)
	require.Equal(t, "s1", last.SessionID)

	// Persistence happens after the stream completes, from the full text.
	persisted := rig.history.sessions[historyKey("U1", "s1")]
	require.Len(t, persisted, 2)
	require.Equal(t, "Welcome aboard!", persisted[1].Content)
}

func TestChatStreamUngroundedEscalates(t *testing.T) {
	rig := newTestRig(&fakeModel{streamPieces: []string{"should not stream"}})
	rig.embedder.failAll = true

	ch, _, err := rig.orch.ChatStream(context.Background(), domain.AnonymousCaller(), &domain.ChatRequest{Message: "anything"})
	require.NoError(t, err)

	chunks := collectStream(t, ch)
	require.Len(t, chunks, 2)
	require.Equal(t, EscalationMessage, chunks[0].Content)
	require.True(t, chunks[1].Done)
	require.Len(t, rig.notifier.enqueued, 1)

	// The model is never called on an ungrounded streaming turn.
	require.Empty(t, rig.model.calls)
}

func TestChatStreamClientDisconnectSkipsPersistence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A provider that keeps streaming after the callback reports
	// cancellation and then returns a clean response, like a client
	// library that never checks the context.
	rig := newTestRig(&fakeModel{
		streamPieces:  []string{"partial ", "answer"},
		keepStreaming: true,
	})
	rig.model.streamHook = func(i int) {
		if i == 1 {
			cancel() // client disconnects between tokens
		}
	}
	caller := domain.AuthenticatedCaller("U1", domain.RoleUser)

	ch, _, err := rig.orch.ChatStream(ctx, caller, &domain.ChatRequest{Message: "hi", SessionID: "s1"})
	require.NoError(t, err)

	chunks := collectStream(t, ch)

	// The partial turn is never persisted and no Done sentinel is sent.
	require.Equal(t, 0, rig.history.writes)
	for _, c := range chunks {
		require.False(t, c.Done)
		require.NotEqual(t, "partial answer", c.Content)
	}
}

func TestChatStreamModelErrorEmitsErrorEvent(t *testing.T) {
	rig := newTestRig(&fakeModel{err: errors.New("upstream 500")})
	caller := domain.AuthenticatedCaller("U1", domain.RoleUser)

	ch, _, err := rig.orch.ChatStream(context.Background(), caller, &domain.ChatRequest{Message: "hi", SessionID: "s1"})
	require.NoError(t, err)

	chunks := collectStream(t, ch)
	require.Len(t, chunks, 1)
	require.NotEmpty(t, chunks[0].Err)
	require.Equal(t, 0, rig.history.writes)
}
