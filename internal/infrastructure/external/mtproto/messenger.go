package mtproto

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
)

// messenger implements delivery.Messenger on one live connection.
type messenger struct {
	api    *tg.Client
	sender *message.Sender
	logger *slog.Logger

	mu    sync.Mutex
	peers map[string]tg.InputPeerClass
}

var _ delivery.Messenger = (*messenger)(nil)

func newMessenger(api *tg.Client, logger *slog.Logger) *messenger {
	return &messenger{
		api:    api,
		sender: message.NewSender(api),
		logger: logger,
		peers:  make(map[string]tg.InputPeerClass),
	}
}

// resolve looks the handle up once per connection.
func (m *messenger) resolve(ctx context.Context, handle string) (tg.InputPeerClass, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))

	m.mu.Lock()
	peer, ok := m.peers[key]
	m.mu.Unlock()
	if ok {
		return peer, nil
	}

	peer, err := m.sender.Resolve(handle).AsInputPeer(ctx)
	if err != nil {
		return nil, mapRPCError("Resolve", err)
	}

	m.mu.Lock()
	m.peers[key] = peer
	m.mu.Unlock()
	return peer, nil
}

// FindLatest runs a server-side history search for text in the chat with handle.
func (m *messenger) FindLatest(ctx context.Context, handle, text string) (*delivery.Message, error) {
	peer, err := m.resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	res, err := m.api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
		Peer:   peer,
		Q:      text,
		Filter: &tg.InputMessagesFilterEmpty{},
		Limit:  1,
	})
	if err != nil {
		return nil, mapRPCError("FindLatest", err)
	}

	if found := searchResults(res); len(found) > 0 {
		return found[0], nil
	}
	return nil, nil
}

// Send posts msg.Text with the web page preview disabled.
func (m *messenger) Send(ctx context.Context, msg delivery.OutboundMessage) error {
	peer, err := m.resolve(ctx, msg.Handle)
	if err != nil {
		return err
	}

	if _, err := m.sender.To(peer).NoWebpage().Text(ctx, msg.Text); err != nil {
		return mapRPCError("Send", err)
	}

	m.logger.Debug("message sent", "handle", msg.Handle)
	return nil
}

// searchResults flattens every messages.Messages variant into domain messages,
// newest first as returned by the server. Service messages are skipped.
func searchResults(res tg.MessagesMessagesClass) []*delivery.Message {
	var raw []tg.MessageClass
	switch r := res.(type) {
	case *tg.MessagesMessages:
		raw = r.Messages
	case *tg.MessagesMessagesSlice:
		raw = r.Messages
	case *tg.MessagesChannelMessages:
		raw = r.Messages
	}

	out := make([]*delivery.Message, 0, len(raw))
	for _, item := range raw {
		msg, ok := item.(*tg.Message)
		if !ok {
			continue
		}
		out = append(out, &delivery.Message{
			ID:     msg.ID,
			Text:   msg.Message,
			SentAt: time.Unix(int64(msg.Date), 0).UTC(),
		})
	}
	return out
}
