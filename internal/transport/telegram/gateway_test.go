package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

type fakeSink struct {
	mu   sync.Mutex
	msgs []domain.IncomingMessage
	err  error
}

func (f *fakeSink) Enqueue(m domain.IncomingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeSink) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func privateUpdate(id, chatID, userID int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			MessageID: id * 10,
			Date:      1700000000,
			Chat:      &Chat{ID: chatID, Type: "private"},
			From:      &User{ID: userID, FirstName: "Dana", LastName: "Scully"},
			Text:      text,
		},
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		u    *User
		want string
	}{
		{&User{FirstName: "Dana", LastName: "Scully", Username: "ds"}, "Dana Scully"},
		{&User{FirstName: " Dana "}, "Dana"},
		{&User{LastName: "Scully"}, "Scully"},
		{&User{Username: "ds"}, "ds"},
		{&User{}, UnknownSender},
		{nil, UnknownSender},
	}
	for _, c := range cases {
		require.Equal(t, c.want, DisplayName(c.u))
	}
}

func TestToIncoming(t *testing.T) {
	g := NewGateway(nil, &fakeSink{})

	msg, ok := g.ToIncoming(privateUpdate(1, 100, 7, "hi?"))
	require.True(t, ok)
	require.Equal(t, domain.IncomingMessage{
		MessageID:  10,
		ChatID:     100,
		UserID:     7,
		SenderName: "Dana Scully",
		Text:       "hi?",
		ReceivedAt: time.Unix(1700000000, 0).UTC(),
	}, msg)

	group := privateUpdate(2, -100, 7, "hi?")
	group.Message.Chat.Type = "group"
	_, ok = g.ToIncoming(group)
	require.False(t, ok)

	noSender := privateUpdate(3, 100, 7, "hi?")
	noSender.Message.From = nil
	_, ok = g.ToIncoming(noSender)
	require.False(t, ok)

	bot := privateUpdate(4, 100, 7, "hi?")
	bot.Message.From.IsBot = true
	_, ok = g.ToIncoming(bot)
	require.False(t, ok)

	_, ok = g.ToIncoming(Update{UpdateID: 5})
	require.False(t, ok)

	caption := privateUpdate(6, 100, 7, "")
	caption.Message.Caption = "what is this?"
	msg, ok = g.ToIncoming(caption)
	require.True(t, ok)
	require.Equal(t, "what is this?", msg.Text)
}

func TestHandleUpdate(t *testing.T) {
	sink := &fakeSink{}
	g := NewGateway(nil, sink)
	require.True(t, g.HandleUpdate(privateUpdate(1, 100, 7, "hi?")))
	require.Equal(t, 1, sink.len())

	sink.err = errors.New("queue full")
	require.False(t, g.HandleUpdate(privateUpdate(2, 100, 7, "hi?")))
}

func TestSecretMatches(t *testing.T) {
	require.True(t, NewGateway(nil, &fakeSink{}).SecretMatches(""))

	g := NewGateway(nil, &fakeSink{}, WithWebhookSecret("s3cret"))
	require.True(t, g.SecretMatches("s3cret"))
	require.False(t, g.SecretMatches(""))
	require.False(t, g.SecretMatches("s3cre"))
}

// scriptedUpdater fails failures times, then serves batches, then blocks.
type scriptedUpdater struct {
	mu       sync.Mutex
	failures int
	batches  [][]Update
	offsets  []int64
}

func (s *scriptedUpdater) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]Update, int64, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return nil, offset, errors.New("network down")
	}
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		next := offset
		for _, u := range b {
			if u.UpdateID >= next {
				next = u.UpdateID + 1
			}
		}
		return b, next, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, offset, ctx.Err()
}

func (s *scriptedUpdater) seenOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.offsets...)
}

func TestPoll_RecoversFromErrorsAndTracksOffset(t *testing.T) {
	up := &scriptedUpdater{
		failures: 2,
		batches: [][]Update{
			{privateUpdate(1, 100, 7, "a?"), privateUpdate(2, 100, 7, "b?")},
			{privateUpdate(3, 100, 7, "c?")},
		},
	}
	sink := &fakeSink{}
	g := NewGateway(up, sink, WithRetryBounds(time.Millisecond, 2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Poll(ctx) }()

	require.Eventually(t, func() bool { return sink.len() == 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	offs := up.seenOffsets()
	require.GreaterOrEqual(t, len(offs), 4)
	require.Equal(t, []int64{0, 0, 0, 3}, offs[:4])
}

func TestPoll_NoUpdater(t *testing.T) {
	require.Error(t, NewGateway(nil, &fakeSink{}).Poll(context.Background()))
}
