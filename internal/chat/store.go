// Package chat owns the conversation state: chat rooms, their ordered
// message lists, and the per-room typing indicator.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/lumachat/lumachat/internal/domain"
	"github.com/lumachat/lumachat/internal/id"
	"github.com/lumachat/lumachat/internal/storage"
	"github.com/lumachat/lumachat/pkg/log"
)

// StorageKey is the fixed key the conversation state is persisted under.
const StorageKey = "chat-storage"

// ErrChatroomNotFound is returned by message operations against an unknown
// chatroom id.
var ErrChatroomNotFound = errors.New("chatroom not found")

const (
	// lastMessageLimit is the preview length kept on the chatroom.
	lastMessageLimit = 50

	// historyBatchSize is the number of older messages synthesized per
	// load-more call.
	historyBatchSize = 10

	// historySpacing separates consecutive synthesized history messages.
	historySpacing = time.Hour
)

// persistedState is the wire shape of the persisted conversation record.
// Typing flags are transient and deliberately absent.
type persistedState struct {
	Chatrooms []domain.Chatroom           `json:"chatrooms"`
	Messages  map[string][]domain.Message `json:"messages"`
}

// Store is the authoritative model of chat rooms and their messages.
// All mutations are applied atomically under one lock: the chatroom sequence
// and the message map always agree on which rooms exist.
type Store struct {
	mu        sync.RWMutex
	chatrooms []domain.Chatroom
	messages  map[string][]domain.Message
	typing    map[string]bool

	state storage.StateStore
}

// NewStore creates an empty conversation store persisting through state.
func NewStore(state storage.StateStore) *Store {
	return &Store{
		messages: make(map[string][]domain.Message),
		typing:   make(map[string]bool),
		state:    state,
	}
}

// Initialize rehydrates the conversation state from the persisted record.
// Missing or malformed data leaves the store empty with a warning.
func (s *Store) Initialize(ctx context.Context) {
	l := log.Ctx(ctx)

	raw, err := s.state.Load(ctx, StorageKey)
	if err != nil {
		if err != storage.ErrNotFound {
			l.Warn().Err(err).Str(log.FieldStorageKey, StorageKey).Msg("failed to load stored conversations")
		}
		return
	}

	var stored persistedState
	if err := json.Unmarshal(raw, &stored); err != nil {
		l.Warn().Err(err).Str(log.FieldStorageKey, StorageKey).Msg("failed to parse stored conversations")
		return
	}

	s.mu.Lock()
	s.chatrooms = stored.Chatrooms
	if stored.Messages != nil {
		s.messages = stored.Messages
	}
	// Restore the room/message invariant in case the stored record predates
	// a room deletion that never flushed.
	for _, room := range s.chatrooms {
		if _, ok := s.messages[room.ID]; !ok {
			s.messages[room.ID] = []domain.Message{}
		}
	}
	for roomID := range s.messages {
		if !s.hasRoomLocked(roomID) {
			delete(s.messages, roomID)
		}
	}
	s.mu.Unlock()

	l.Debug().Int("chatrooms", len(stored.Chatrooms)).Msg("conversations restored")
}

// CreateChatroom creates a room with the given title and prepends it to the
// room sequence. Title trimming and non-empty validation are the caller's
// responsibility.
func (s *Store) CreateChatroom(ctx context.Context, title string) *domain.Chatroom {
	room := domain.Chatroom{
		ID:        id.NewChatroomID(),
		Title:     title,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.chatrooms = append([]domain.Chatroom{room}, s.chatrooms...)
	s.messages[room.ID] = []domain.Message{}
	s.mu.Unlock()

	s.persist(ctx)
	ctxLogger := log.Ctx(ctx)
	ctxLogger.Debug().Str(log.FieldChatroomID, room.ID).Msg("chatroom created")
	return &room
}

// DeleteChatroom removes the room and its message list together. Deleting an
// unknown id is a no-op.
func (s *Store) DeleteChatroom(ctx context.Context, roomID string) {
	s.mu.Lock()
	found := false
	for i, room := range s.chatrooms {
		if room.ID == roomID {
			s.chatrooms = append(s.chatrooms[:i], s.chatrooms[i+1:]...)
			found = true
			break
		}
	}
	delete(s.messages, roomID)
	delete(s.typing, roomID)
	s.mu.Unlock()

	if found {
		s.persist(ctx)
		ctxLogger := log.Ctx(ctx)
		ctxLogger.Debug().Str(log.FieldChatroomID, roomID).Msg("chatroom deleted")
	}
}

// Chatrooms returns the rooms newest-first. A non-empty query filters by
// case-insensitive title substring.
func (s *Store) Chatrooms(query string) []domain.Chatroom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	rooms := make([]domain.Chatroom, 0, len(s.chatrooms))
	for _, room := range s.chatrooms {
		if query == "" || strings.Contains(strings.ToLower(room.Title), query) {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// Chatroom returns the room with the given id.
func (s *Store) Chatroom(roomID string) (domain.Chatroom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.chatrooms {
		if room.ID == roomID {
			return room, true
		}
	}
	return domain.Chatroom{}, false
}

// Messages returns the room's messages oldest-first.
func (s *Store) Messages(roomID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.messages[roomID]
	if !ok {
		return nil, ErrChatroomNotFound
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AddMessage assigns an id and timestamp, appends the message at the tail of
// the room's list, and refreshes the room's last-message preview.
func (s *Store) AddMessage(ctx context.Context, roomID, content string, role domain.Role, imageURL string) (*domain.Message, error) {
	msg := domain.Message{
		ID:        id.NewMessageID(),
		Content:   content,
		Role:      role,
		Timestamp: time.Now(),
		ImageURL:  imageURL,
	}

	s.mu.Lock()
	if _, ok := s.messages[roomID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrChatroomNotFound, roomID)
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	for i := range s.chatrooms {
		if s.chatrooms[i].ID == roomID {
			s.chatrooms[i].LastMessage = truncatePreview(content)
			t := msg.Timestamp
			s.chatrooms[i].LastMessageTime = &t
			break
		}
	}
	s.mu.Unlock()

	s.persist(ctx)
	return &msg, nil
}

// SetTyping sets the room's "assistant is composing" flag. Flags are keyed
// per chatroom so activity in one room never shows in another.
func (s *Store) SetTyping(roomID string, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typing {
		s.typing[roomID] = true
	} else {
		delete(s.typing, roomID)
	}
}

// IsTyping reports the room's composing flag.
func (s *Store) IsTyping(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing[roomID]
}

// LoadMoreMessages synthesizes a batch of older placeholder messages and
// prepends it to the room's list, preserving oldest-first order. The batch is
// anchored strictly before every message already present. This stands in for
// a real historical-message fetch.
func (s *Store) LoadMoreMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	s.mu.Lock()
	existing, ok := s.messages[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrChatroomNotFound, roomID)
	}

	anchor := time.Now()
	if len(existing) > 0 && existing[0].Timestamp.Before(anchor) {
		anchor = existing[0].Timestamp
	}

	batch := make([]domain.Message, historyBatchSize)
	for i := range batch {
		role := domain.RoleAssistant
		if rand.Intn(2) == 0 {
			role = domain.RoleUser
		}
		batch[i] = domain.Message{
			ID:        id.NewMessageID(),
			Content:   fmt.Sprintf("This is an older message %d", i+1),
			Role:      role,
			Timestamp: anchor.Add(-time.Duration(historyBatchSize-i) * historySpacing),
		}
	}

	s.messages[roomID] = append(append([]domain.Message{}, batch...), existing...)
	s.mu.Unlock()

	s.persist(ctx)
	ctxLogger := log.Ctx(ctx)
	ctxLogger.Debug().Str(log.FieldChatroomID, roomID).Int("batch", historyBatchSize).Msg("older messages loaded")
	return batch, nil
}

// hasRoomLocked reports room existence; callers must hold the lock.
func (s *Store) hasRoomLocked(roomID string) bool {
	for _, room := range s.chatrooms {
		if room.ID == roomID {
			return true
		}
	}
	return false
}

// persist writes the current chatrooms and messages. Failures are logged and
// never corrupt in-memory state.
func (s *Store) persist(ctx context.Context) {
	s.mu.RLock()
	rooms := make([]domain.Chatroom, len(s.chatrooms))
	copy(rooms, s.chatrooms)
	msgs := make(map[string][]domain.Message, len(s.messages))
	for roomID, list := range s.messages {
		msgs[roomID] = list
	}
	s.mu.RUnlock()

	state := persistedState{Chatrooms: rooms, Messages: msgs}

	if err := s.state.Save(ctx, StorageKey, state); err != nil {
		ctxLogger := log.Ctx(ctx)
		ctxLogger.Warn().Err(err).Str(log.FieldStorageKey, StorageKey).Msg("failed to persist conversations")
	}
}

// truncatePreview shortens content to the last-message preview length,
// marking truncation with an ellipsis.
func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= lastMessageLimit {
		return content
	}
	return string(runes[:lastMessageLimit]) + "..."
}
