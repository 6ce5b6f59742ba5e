package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lumachat/lumachat/internal/assistant"
	"github.com/lumachat/lumachat/internal/domain"
	"github.com/lumachat/lumachat/pkg/log"
)

// ErrReplyPending is returned when a send is attempted while the assistant
// is still composing a reply for the same room.
var ErrReplyPending = errors.New("a reply is already pending for this chatroom")

// imageOnlyContent replaces empty content when a message carries an image.
const imageOnlyContent = "Shared an image"

// Service orchestrates the send flow: append the user message, flip the
// room's typing flag, await the assistant, append the reply. One reply may be
// outstanding per room at a time.
type Service struct {
	store     *Store
	generator assistant.Generator

	loadMoreDelay time.Duration

	mu       sync.Mutex
	inflight map[string]bool
}

// NewService creates a chat service over the given store and generator.
// loadMoreDelay simulates the latency of a historical-message fetch.
func NewService(store *Store, generator assistant.Generator, loadMoreDelay time.Duration) *Service {
	return &Service{
		store:         store,
		generator:     generator,
		loadMoreDelay: loadMoreDelay,
		inflight:      make(map[string]bool),
	}
}

// SendMessage appends the user message and the generated assistant reply.
// The room's typing flag is set while the generator runs and cleared on every
// path, including failure. A second send while a reply is outstanding fails
// fast with ErrReplyPending.
func (s *Service) SendMessage(ctx context.Context, roomID, content, imageURL string) (*domain.SendMessageResponse, error) {
	if content == "" && imageURL != "" {
		content = imageOnlyContent
	}

	if err := s.acquire(roomID); err != nil {
		return nil, err
	}
	defer s.release(roomID)

	userMsg, err := s.store.AddMessage(ctx, roomID, content, domain.RoleUser, imageURL)
	if err != nil {
		return nil, err
	}

	s.store.SetTyping(roomID, true)
	defer s.store.SetTyping(roomID, false)

	reply, err := s.generator.Generate(ctx, content)
	if err != nil {
		ctxLogger := log.Ctx(ctx)
		ctxLogger.Warn().Err(err).Str(log.FieldChatroomID, roomID).Msg("assistant generation failed")
		return nil, err
	}

	assistantMsg, err := s.store.AddMessage(ctx, roomID, reply, domain.RoleAssistant, "")
	if err != nil {
		// The room was deleted while the reply was being generated.
		return nil, err
	}

	return &domain.SendMessageResponse{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// LoadMore waits the simulated fetch delay, then prepends a batch of older
// messages to the room.
func (s *Service) LoadMore(ctx context.Context, roomID string) ([]domain.Message, error) {
	if s.loadMoreDelay > 0 {
		select {
		case <-time.After(s.loadMoreDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.store.LoadMoreMessages(ctx, roomID)
}

func (s *Service) acquire(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[roomID] {
		return ErrReplyPending
	}
	s.inflight[roomID] = true
	return nil
}

func (s *Service) release(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, roomID)
}
