package message

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stellar/go-stellar-sdk/support/log"
)

type MessageChannel string

const (
	MessageChannelEmail MessageChannel = "EMAIL"
	MessageChannelSMS   MessageChannel = "SMS"
)

var ErrNoSupportedChannel = errors.New("message has no recipient for any registered channel")

type MessageDispatcherInterface interface {
	RegisterClient(ctx context.Context, channel MessageChannel, client MessengerClient)
	SendMessage(ctx context.Context, message Message, channelPriority []MessageChannel) (MessengerType, error)
	GetClient(channel MessageChannel) (MessengerClient, error)
}

// MessageDispatcher sends a message through the first channel, in priority order, that both has a registered client
// and a recipient in the message.
type MessageDispatcher struct {
	mu      sync.RWMutex
	clients map[MessageChannel]MessengerClient
}

func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{clients: make(map[MessageChannel]MessengerClient)}
}

func (d *MessageDispatcher) RegisterClient(ctx context.Context, channel MessageChannel, client MessengerClient) {
	log.Ctx(ctx).Infof("registering messenger %s for channel %s", client.MessengerType(), channel)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[channel] = client
}

func (d *MessageDispatcher) SendMessage(ctx context.Context, message Message, channelPriority []MessageChannel) (MessengerType, error) {
	supported := make(map[MessageChannel]bool)
	for _, ch := range message.SupportedChannels() {
		supported[ch] = true
	}

	var errs []error
	var messengerType MessengerType
	for _, channel := range channelPriority {
		if !supported[channel] {
			continue
		}
		client, err := d.GetClient(channel)
		if err != nil {
			log.Ctx(ctx).Warnf("no client registered for channel %q", channel)
			continue
		}
		messengerType = client.MessengerType()

		if err = client.SendMessage(ctx, message); err == nil {
			return messengerType, nil
		}
		log.Ctx(ctx).Errorf("sending %s through %s: %v", message, messengerType, err)
		errs = append(errs, fmt.Errorf("%s: %w", channel, err))
	}

	if len(errs) == 0 {
		return messengerType, fmt.Errorf("sending %s: %w", message, ErrNoSupportedChannel)
	}
	return messengerType, fmt.Errorf("unable to send %s: %w", message, errors.Join(errs...))
}

func (d *MessageDispatcher) GetClient(channel MessageChannel) (MessengerClient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	client, ok := d.clients[channel]
	if !ok {
		return nil, fmt.Errorf("no client registered for channel %q", channel)
	}
	return client, nil
}

var _ MessageDispatcherInterface = (*MessageDispatcher)(nil)
