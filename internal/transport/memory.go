package transport

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Transport useful for tests.
// It is not intended for production use.
//
// Failures are scripted per channel via Fail* maps; deleting a message
// upstream (DropMessage) makes later edits/deletes of it return ErrNotFound.
type Memory struct {
	mu sync.Mutex

	nextID   int
	messages map[string]Message // message id -> message
	byChan   map[string][]string
	channels map[string]Channel
	typing   map[string]int

	FailSend   map[string]error // channel id -> error
	FailEdit   map[string]error // message id -> error
	FailDelete map[string]error // message id -> error
	FailFetch  map[string]error // channel id -> error
}

func NewMemory() *Memory {
	return &Memory{
		messages:   map[string]Message{},
		byChan:     map[string][]string{},
		channels:   map[string]Channel{},
		typing:     map[string]int{},
		FailSend:   map[string]error{},
		FailEdit:   map[string]error{},
		FailDelete: map[string]error{},
		FailFetch:  map[string]error{},
	}
}

// AddChannel registers a channel so FetchChannel can resolve it.
func (m *Memory) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch
}

func (m *Memory) SendMessage(ctx context.Context, channelID string, content MessageContent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailSend[channelID]; err != nil {
		return "", err
	}
	m.nextID++
	id := fmt.Sprintf("m%d", m.nextID)
	m.messages[id] = Message{ID: id, ChannelID: channelID, Content: content.Content, Embeds: content.Embeds}
	m.byChan[channelID] = append(m.byChan[channelID], id)
	return id, nil
}

func (m *Memory) EditMessage(ctx context.Context, channelID, messageID string, content MessageContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailEdit[messageID]; err != nil {
		return err
	}
	msg, ok := m.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.Content = content.Content
	msg.Embeds = content.Embeds
	m.messages[messageID] = msg
	return nil
}

func (m *Memory) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailDelete[messageID]; err != nil {
		return err
	}
	if _, ok := m.messages[messageID]; !ok {
		return ErrNotFound
	}
	delete(m.messages, messageID)
	return nil
}

func (m *Memory) FetchMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (m *Memory) PostTyping(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing[channelID]++
	return nil
}

func (m *Memory) FetchChannel(ctx context.Context, channelID string) (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailFetch[channelID]; err != nil {
		return Channel{}, err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return Channel{}, ErrNotFound
	}
	return ch, nil
}

// Sent returns the messages delivered to a channel, in order, skipping any
// that were deleted afterwards.
func (m *Memory) Sent(channelID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, id := range m.byChan[channelID] {
		if msg, ok := m.messages[id]; ok {
			out = append(out, msg)
		}
	}
	return out
}

// Get returns a message by id regardless of channel.
func (m *Memory) Get(messageID string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	return msg, ok
}

// DropMessage simulates an upstream deletion outside the relay's control.
func (m *Memory) DropMessage(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, messageID)
}

// TypingCount reports how many typing indicators were posted to a channel.
func (m *Memory) TypingCount(channelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typing[channelID]
}
