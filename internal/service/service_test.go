package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/adapter/llm"
	"github.com/xiaot623/nudge/internal/advice"
	"github.com/xiaot623/nudge/internal/config"
	"github.com/xiaot623/nudge/internal/dispatch"
	"github.com/xiaot623/nudge/internal/domain"
	"github.com/xiaot623/nudge/internal/moderation"
	"github.com/xiaot623/nudge/internal/repository"
	"github.com/xiaot623/nudge/policy"
	"github.com/xiaot623/nudge/tests/helpers"
)

// fakeLLM answers moderation requests (JSON mode) from a verdict table and
// advice requests with a fixed reply. It counts both kinds of call.
type fakeLLM struct {
	mu               sync.Mutex
	hostile          map[string]string
	adviceReply      string
	adviceErr        error
	classifyCalls    int
	adviceCalls      int
	lastAdvicePrompt []llm.ChatMessage
}

func (f *fakeLLM) CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	text := req.Messages[len(req.Messages)-1].Content
	if req.ResponseFormat != nil {
		f.classifyCalls++
		out := `{"revise": false, "suggestion": ""}`
		if s, ok := f.hostile[text]; ok {
			out = `{"revise": true, "suggestion": "` + s + `"}`
		}
		return textResponse(out), nil
	}

	f.adviceCalls++
	f.lastAdvicePrompt = req.Messages
	if f.adviceErr != nil {
		return nil, f.adviceErr
	}
	return textResponse(f.adviceReply), nil
}

func textResponse(s string) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{
		Choices: []llm.Choice{{Message: &llm.ChatMessage{Role: llm.RoleAssistant, Content: s}}},
	}
}

type recordingPusher struct {
	mu     sync.Mutex
	tokens []string
}

func (p *recordingPusher) Send(ctx context.Context, token, title, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, token)
	return nil
}

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.sent = append(m.sent, to)
	return m.err
}

type fixture struct {
	svc    *Service
	store  *store.SQLiteStore
	llm    *fakeLLM
	pusher *recordingPusher
	mailer *recordingMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := helpers.NewTestSQLiteStore(t)
	fake := &fakeLLM{
		hostile: map[string]string{
			"wth you can just tell us you couldn't do it": "hey, no stress, just let us know if you can't get to it",
		},
		adviceReply: "Maybe check in with them and offer to split the work.",
	}
	pusher := &recordingPusher{}
	mailer := &recordingMailer{}
	cfg := &config.Config{LLMTimeout: time.Second, AdviceHistoryLimit: 15, PushBatchTimeout: time.Second}

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	logger := zap.NewNop()
	svc := New(db,
		moderation.NewEngine(fake, "", logger),
		advice.NewEngine(db, fake, "", cfg.AdviceHistoryLimit, logger),
		dispatch.NewDispatcher(pusher, mailer, cfg.PushBatchTimeout, logger),
		cfg, policyEngine, logger)

	helpers.SeedGroup(t, db, "g1", "ta@example.com", "alice", "bob")
	return &fixture{svc: svc, store: db, llm: fake, pusher: pusher, mailer: mailer}
}

func TestOpenChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, created, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1", Type: domain.ChatTypeUser})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := f.svc.OpenChat(ctx, "bob", domain.OpenChatRequest{OtherUserID: "alice", GroupID: "g1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, chat.ChatID, again.ChatID)

	_, _, err = f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "alice", GroupID: "g1"})
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))

	_, _, err = f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "mallory", GroupID: "g1"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, _, err = f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "nope"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, _, err = f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1", Type: "video"})
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestHostileMessageNeedsConfirmationThenPersistsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1"})
	require.NoError(t, err)

	res, err := f.svc.SendMessage(ctx, "alice", chat.ChatID, "wth you can just tell us you couldn't do it")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStateNeedsConfirmation, res.State)
	assert.Equal(t, "wth you can just tell us you couldn't do it", res.Original)
	assert.NotEmpty(t, res.Suggestion)
	assert.Nil(t, res.Chat)

	stored, err := f.store.GetChat(ctx, chat.ChatID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
	assert.Equal(t, 1, f.llm.classifyCalls)

	res, err = f.svc.ConfirmMessage(ctx, "alice", chat.ChatID, res.Suggestion)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatePersisted, res.State)
	require.Len(t, res.Chat.Messages, 1)
	assert.Equal(t, "alice", res.Chat.Messages[0].Sender)
	assert.Equal(t, "hey, no stress, just let us know if you can't get to it", res.Chat.Messages[0].Content)
	assert.Equal(t, 1, f.llm.classifyCalls, "confirmation must not classify again")
}

func TestPoliteMessageIsPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1"})
	require.NoError(t, err)

	res, err := f.svc.SendMessage(ctx, "alice", chat.ChatID, "can you do your part by tonight?")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatePersisted, res.State)
	require.NotNil(t, res.Chat)
	require.Len(t, res.Chat.Messages, 1)
	assert.Equal(t, domain.SenderTypeUser, res.Chat.Messages[0].SenderType)
}

func TestSendMessageErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1"})
	require.NoError(t, err)
	nugget, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1", Type: domain.ChatTypeNugget})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, "alice", chat.ChatID, "   ")
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))

	_, err = f.svc.SendMessage(ctx, "carol", chat.ChatID, "hi")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.svc.SendMessage(ctx, "alice", "chat_missing", "hi")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.svc.SendMessage(ctx, "alice", nugget.ChatID, "hi")
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))

	_, err = f.svc.SendMessage(ctx, "bob", nugget.ChatID, "hi")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "nugget chats are private to their owner")
}

func TestModerationUpstreamFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.moderator = moderation.NewEngine(llm.ClientFunc(func(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
		return nil, errors.New("503")
	}), "", zap.NewNop())

	chat, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1"})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, "alice", chat.ChatID, "hello")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))

	stored, err := f.store.GetChat(ctx, chat.ChatID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
}

func TestNuggetMessageAppendsQuestionAndReply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	peer, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1"})
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, "bob", peer.ChatID, "I'll get to it later")
	require.NoError(t, err)

	nugget, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1", Type: domain.ChatTypeNugget})
	require.NoError(t, err)

	chat, err := f.svc.SendNuggetMessage(ctx, "alice", nugget.ChatID, "they haven't done their part")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, domain.SenderTypeUser, chat.Messages[0].SenderType)
	assert.Equal(t, "they haven't done their part", chat.Messages[0].Content)
	assert.Equal(t, domain.SenderTypeNugget, chat.Messages[1].SenderType)
	assert.Empty(t, chat.Messages[1].Sender)
	assert.NotEmpty(t, chat.Messages[1].Content)
	assert.False(t, chat.Messages[1].Timestamp.Before(chat.Messages[0].Timestamp))

	// peer context is summarized; the owner's message appears exactly once
	var occurrences int
	for _, m := range f.llm.lastAdvicePrompt {
		occurrences += strings.Count(m.Content, "they haven't done their part")
	}
	assert.Equal(t, 1, occurrences)
	assert.Contains(t, f.llm.lastAdvicePrompt[1].Content, "Them: I'll get to it later")
}

func TestNuggetAdviceFailureKeepsOwnerMessageAndRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.llm.adviceErr = errors.New("deadline exceeded")

	nugget, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1", Type: domain.ChatTypeNugget})
	require.NoError(t, err)

	_, err = f.svc.SendNuggetMessage(ctx, "alice", nugget.ChatID, "bob is ghosting us")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAdviceUnavailable))
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))

	var failure *AdviceFailure
	require.True(t, errors.As(err, &failure))
	require.Len(t, failure.Chat.Messages, 1)
	assert.Equal(t, "bob is ghosting us", failure.Chat.Messages[0].Content)

	f.llm.adviceErr = nil
	chat, err := f.svc.RetryAdvice(ctx, "alice", nugget.ChatID)
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, domain.SenderTypeNugget, chat.Messages[1].SenderType)

	_, err = f.svc.RetryAdvice(ctx, "alice", nugget.ChatID)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest), "nothing left to answer")
}

type advisorFunc func(ctx context.Context, groupID, ownerID, aboutID, newMessage string) (string, error)

func (f advisorFunc) GetAdvice(ctx context.Context, groupID, ownerID, aboutID, newMessage string) (string, error) {
	return f(ctx, groupID, ownerID, aboutID, newMessage)
}

type moderatorFunc func(ctx context.Context, text string) (domain.Verdict, error)

func (f moderatorFunc) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	return f(ctx, text)
}

func TestNuggetReplyKeptWhenCallerGoesAway(t *testing.T) {
	f := newFixture(t)
	nugget, _, err := f.svc.OpenChat(context.Background(), "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1", Type: domain.ChatTypeNugget})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.advisor = advisorFunc(func(aiCtx context.Context, groupID, ownerID, aboutID, newMessage string) (string, error) {
		cancel()
		require.NoError(t, aiCtx.Err())
		return "reply generated", nil
	})

	chat, err := f.svc.SendNuggetMessage(ctx, "alice", nugget.ChatID, "bob is ghosting us")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)

	stored, err := f.store.GetChat(context.Background(), nugget.ChatID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "reply generated", stored.Messages[1].Content)
}

func TestAcceptedMessageKeptWhenCallerGoesAway(t *testing.T) {
	f := newFixture(t)
	chat, _, err := f.svc.OpenChat(context.Background(), "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.moderator = moderatorFunc(func(aiCtx context.Context, text string) (domain.Verdict, error) {
		cancel()
		return domain.Verdict{}, nil
	})

	result, err := f.svc.SendMessage(ctx, "alice", chat.ChatID, "can you send the slides tonight?")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatePersisted, result.State)

	stored, err := f.store.GetChat(context.Background(), chat.ChatID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
}

func TestGetChatResolvesParticipants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	nugget, _, err := f.svc.OpenChat(ctx, "alice", domain.OpenChatRequest{OtherUserID: "bob", GroupID: "g1", Type: domain.ChatTypeNugget})
	require.NoError(t, err)

	view, err := f.svc.GetChat(ctx, "alice", nugget.ChatID)
	require.NoError(t, err)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, "alice", view.Participants[0].UserID)
	require.NotNil(t, view.AboutUser)
	assert.Equal(t, "bob", view.AboutUser.UserID)

	chats, err := f.svc.ListChats(ctx, "alice", "g1")
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	chats, err = f.svc.ListChats(ctx, "bob", "g1")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestCreateReminderNudgeWithoutTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.UpsertUser(ctx, &domain.User{UserID: "bob", Name: "Bob"}))

	res, err := f.svc.CreateNudge(ctx, "alice", domain.NudgeRequest{
		Type: domain.NudgeTypeReminder, GroupID: "g1", TaskID: "t1", Sender: "alice", Receiver: "bob",
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Empty(t, res.Deliveries)
	assert.Empty(t, f.pusher.tokens)

	stored, err := f.store.GetNudge(ctx, res.Nudge.NudgeID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.NudgeTypeReminder, stored.Type())
	assert.Empty(t, stored.TAEmail())

	task, err := f.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{res.Nudge.NudgeID}, task.Nudges)
}

func TestCreateReminderNudgePushesTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.CreateNudge(ctx, "alice", domain.NudgeRequest{
		Type: domain.NudgeTypeReminder, GroupID: "g1", TaskID: "t1", Sender: "alice", Receiver: "bob",
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, []string{"tok-bob"}, f.pusher.tokens)

	nudges, err := f.svc.ListTaskNudges(ctx, "bob", "t1")
	require.NoError(t, err)
	require.Len(t, nudges, 1)

	_, err = f.svc.ListTaskNudges(ctx, "mallory", "t1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreateEmailTANudgeWithoutTAEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	helpers.SeedGroup(t, f.store, "g2", "", "alice", "bob")
	require.NoError(t, f.store.UpsertTask(ctx, &domain.Task{TaskID: "t2", GroupID: "g2", Title: "Poster"}))

	_, err := f.svc.CreateNudge(ctx, "alice", domain.NudgeRequest{
		Type: domain.NudgeTypeEmailTA, GroupID: "g2", TaskID: "t2", Sender: "alice", Receiver: "bob",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
	assert.Empty(t, f.mailer.sent, "no delivery attempt")

	nudges, err := f.store.ListNudgesForTask(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, nudges, "no nudge record")
}

func TestCreateEmailTANudgeDeliveryFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mailer.err = errors.New("smtp: 451")

	res, err := f.svc.CreateNudge(ctx, "alice", domain.NudgeRequest{
		Type: domain.NudgeTypeEmailTA, GroupID: "g1", TaskID: "t1", Sender: "alice", Receiver: "bob",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	require.NotNil(t, res)
	assert.False(t, res.Delivered)
	assert.Equal(t, []string{"ta@example.com"}, f.mailer.sent)

	stored, err := f.store.GetNudge(ctx, res.Nudge.NudgeID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ta@example.com", stored.TAEmail())
}

func TestCreateNudgeValidationAndPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name   string
		caller string
		req    domain.NudgeRequest
		kind   error
	}{
		{"unknown type", "alice", domain.NudgeRequest{Type: "fax", GroupID: "g1", TaskID: "t1", Sender: "alice", Receiver: "bob"}, domain.ErrInvalidRequest},
		{"missing receiver", "alice", domain.NudgeRequest{Type: domain.NudgeTypePhoneCall, GroupID: "g1", TaskID: "t1", Sender: "alice"}, domain.ErrInvalidRequest},
		{"self nudge", "alice", domain.NudgeRequest{Type: domain.NudgeTypePhoneCall, GroupID: "g1", TaskID: "t1", Sender: "alice", Receiver: "alice"}, domain.ErrInvalidRequest},
		{"impersonation", "bob", domain.NudgeRequest{Type: domain.NudgeTypePhoneCall, GroupID: "g1", TaskID: "t1", Sender: "alice", Receiver: "bob"}, domain.ErrInvalidRequest},
		{"outsider", "alice", domain.NudgeRequest{Type: domain.NudgeTypePhoneCall, GroupID: "g1", TaskID: "t1", Sender: "alice", Receiver: "mallory"}, domain.ErrInvalidRequest},
		{"missing group", "alice", domain.NudgeRequest{Type: domain.NudgeTypePhoneCall, GroupID: "nope", TaskID: "t1", Sender: "alice", Receiver: "bob"}, domain.ErrNotFound},
		{"missing task", "alice", domain.NudgeRequest{Type: domain.NudgeTypePhoneCall, GroupID: "g1", TaskID: "nope", Sender: "alice", Receiver: "bob"}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateNudge(ctx, tc.caller, tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), err.Error())
		})
	}

	res, err := f.svc.CreateNudge(ctx, "alice", domain.NudgeRequest{
		Type: domain.NudgeTypePhoneCall, GroupID: "g1", TaskID: "t1", Sender: "alice", Receiver: "bob",
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, domain.NudgeTypePhoneCall, res.Nudge.Type())
}

func TestDirectorySync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.svc.UpsertUser(ctx, "carol", domain.UpsertUserRequest{Name: "Carol", PushTokens: []string{" tok-c ", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-c"}, user.PushTokens)

	group, err := f.svc.AddGroupMember(ctx, "g1", domain.AddMemberRequest{UserID: "carol"})
	require.NoError(t, err)
	assert.Contains(t, group.Members, "carol")

	_, err = f.svc.AddGroupMember(ctx, "g1", domain.AddMemberRequest{UserID: "carol"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = f.svc.UpsertTask(ctx, "t9", domain.UpsertTaskRequest{GroupID: "g1"})
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))

	task, err := f.svc.UpsertTask(ctx, "t9", domain.UpsertTaskRequest{GroupID: "g1", Title: "Demo", Assignee: "carol"})
	require.NoError(t, err)
	assert.Equal(t, "carol", task.Assignee)

	g, err := f.svc.UpsertGroup(ctx, "g3", domain.UpsertGroupRequest{Name: "Team 3", TAEmail: " ta3@example.com ", Members: []string{"carol"}})
	require.NoError(t, err)
	assert.Equal(t, "ta3@example.com", g.TAEmail)
}
