package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

// UnknownSender is used when an account exposes no name at all.
const UnknownSender = "Unknown"

// SecretHeader carries the webhook secret set with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Enqueuer accepts converted messages; the runtime's Enqueue satisfies it.
type Enqueuer interface {
	Enqueue(msg domain.IncomingMessage) error
}

// Updater is the slice of the Bot API the polling loop needs.
type Updater interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error)
}

// Gateway feeds private-chat messages into an Enqueuer.
type Gateway struct {
	updates     Updater
	sink        Enqueuer
	pollTimeout time.Duration
	secret      string
	now         func() time.Time

	retryInitial time.Duration
	retryMax     time.Duration
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithPollTimeout sets the getUpdates long-poll timeout.
func WithPollTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.pollTimeout = d
		}
	}
}

// WithWebhookSecret sets the secret expected in SecretHeader.
func WithWebhookSecret(secret string) GatewayOption {
	return func(g *Gateway) { g.secret = strings.TrimSpace(secret) }
}

// WithRetryBounds sets the backoff applied after polling errors.
func WithRetryBounds(initial, maxWait time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.retryInitial, g.retryMax = initial, maxWait
	}
}

// NewGateway returns a Gateway reading from updates (may be nil in webhook
// mode) and writing into sink.
func NewGateway(updates Updater, sink Enqueuer, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		updates:      updates,
		sink:         sink,
		pollTimeout:  30 * time.Second,
		now:          time.Now,
		retryInitial: time.Second,
		retryMax:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DisplayName is "first last", else first, else last, else the username,
// else UnknownSender.
func DisplayName(u *User) string {
	if u == nil {
		return UnknownSender
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	username := strings.TrimSpace(u.Username)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case username != "":
		return username
	default:
		return UnknownSender
	}
}

// ToIncoming converts an update. Only new messages in private chats with a
// sender qualify.
func (g *Gateway) ToIncoming(u Update) (domain.IncomingMessage, bool) {
	m := u.Message
	if m == nil || m.Chat == nil || m.From == nil {
		return domain.IncomingMessage{}, false
	}
	if m.Chat.Type != "private" || m.From.IsBot {
		return domain.IncomingMessage{}, false
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	received := g.now().UTC()
	if m.Date > 0 {
		received = time.Unix(m.Date, 0).UTC()
	}
	return domain.IncomingMessage{
		MessageID:  m.MessageID,
		ChatID:     m.Chat.ID,
		UserID:     m.From.ID,
		SenderName: DisplayName(m.From),
		Text:       text,
		ReceivedAt: received,
	}, true
}

// HandleUpdate converts and enqueues one update. It reports whether the
// update was accepted into the queue.
func (g *Gateway) HandleUpdate(u Update) bool {
	msg, ok := g.ToIncoming(u)
	if !ok {
		log.Debug().Int64("update_id", u.UpdateID).Msg("telegram update ignored")
		return false
	}
	if err := g.sink.Enqueue(msg); err != nil {
		log.Debug().Err(err).Int64("update_id", u.UpdateID).Msg("telegram update not enqueued")
		return false
	}
	return true
}

// SecretMatches reports whether header carries the configured webhook
// secret. With no secret configured every request matches.
func (g *Gateway) SecretMatches(header string) bool {
	if g.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(g.secret)) == 1
}

// Poll runs the getUpdates loop until ctx is cancelled. Errors back off
// exponentially and the loop resumes; a successful poll resets the backoff.
func (g *Gateway) Poll(ctx context.Context) error {
	if g.updates == nil {
		return errors.New("telegram: polling needs an updater")
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retryInitial
	bo.MaxInterval = g.retryMax

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, next, err := g.updates.GetUpdates(ctx, offset, g.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := bo.NextBackOff()
			log.Warn().Err(err).Dur("retry_in", wait).Msg("telegram poll failed")
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			continue
		}
		bo.Reset()
		offset = next
		for _, u := range updates {
			g.HandleUpdate(u)
		}
	}
}
