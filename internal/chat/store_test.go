package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lumachat/lumachat/internal/domain"
	"github.com/lumachat/lumachat/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	state, err := storage.NewFileStore(storage.FileConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewStore(state)
}

func TestCreateChatroomPrependsRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := store.CreateChatroom(ctx, "Trip Planning")
	second := store.CreateChatroom(ctx, "Recipes")

	if first.ID == second.ID {
		t.Fatalf("chatroom ids must be unique, both=%s", first.ID)
	}

	rooms := store.Chatrooms("")
	if len(rooms) != 2 {
		t.Fatalf("rooms count: want=2 got=%d", len(rooms))
	}
	if rooms[0].ID != second.ID {
		t.Fatalf("newest room should be first: want=%s got=%s", second.ID, rooms[0].ID)
	}

	msgs, err := store.Messages(first.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("new room message list should be empty, got=%d", len(msgs))
	}
}

func TestChatroomsFilterByTitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.CreateChatroom(ctx, "Trip Planning")
	store.CreateChatroom(ctx, "Recipes")

	rooms := store.Chatrooms("trip")
	if len(rooms) != 1 || rooms[0].Title != "Trip Planning" {
		t.Fatalf("filtered rooms: %+v", rooms)
	}
	if got := store.Chatrooms("nothing matches"); len(got) != 0 {
		t.Fatalf("no-match filter should be empty, got=%+v", got)
	}
}

func TestDeleteChatroomRemovesRoomAndMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	room := store.CreateChatroom(ctx, "Trip Planning")
	if _, err := store.AddMessage(ctx, room.ID, "hello", domain.RoleUser, ""); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	store.DeleteChatroom(ctx, room.ID)

	if len(store.Chatrooms("")) != 0 {
		t.Fatalf("room should be gone after delete")
	}
	if _, err := store.Messages(room.ID); err == nil {
		t.Fatalf("message list should be gone after delete")
	}

	// Second delete is a no-op, not an error.
	store.DeleteChatroom(ctx, room.ID)
	store.DeleteChatroom(ctx, "never-existed")
}

func TestAddMessageUpdatesLastMessagePreview(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	room := store.CreateChatroom(ctx, "Previews")

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "Hello", "Hello"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"over fifty", strings.Repeat("b", 51), strings.Repeat("b", 50) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.AddMessage(ctx, room.ID, tt.content, domain.RoleUser, ""); err != nil {
				t.Fatalf("AddMessage: %v", err)
			}
			got, ok := store.Chatroom(room.ID)
			if !ok {
				t.Fatalf("room disappeared")
			}
			if got.LastMessage != tt.want {
				t.Fatalf("lastMessage: want=%q got=%q", tt.want, got.LastMessage)
			}
			if got.LastMessageTime == nil {
				t.Fatalf("lastMessageTime should be set")
			}
		})
	}
}

func TestAddMessageAppendsInOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	room := store.CreateChatroom(ctx, "Ordering")

	for _, content := range []string{"one", "two", "three"} {
		if _, err := store.AddMessage(ctx, room.ID, content, domain.RoleUser, ""); err != nil {
			t.Fatalf("AddMessage %q: %v", content, err)
		}
	}

	msgs, err := store.Messages(room.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages count: want=3 got=%d", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Content != want {
			t.Fatalf("message %d: want=%q got=%q", i, want, msgs[i].Content)
		}
		if msgs[i].ID == "" || msgs[i].Timestamp.IsZero() {
			t.Fatalf("message %d missing id or timestamp: %+v", i, msgs[i])
		}
	}
}

func TestAddMessageUnknownRoomFails(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddMessage(context.Background(), "no-such-room", "hi", domain.RoleUser, "")
	if err == nil {
		t.Fatalf("expected error for unknown chatroom")
	}
}

func TestTypingFlagIsPerRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := store.CreateChatroom(ctx, "Room A")
	b := store.CreateChatroom(ctx, "Room B")

	store.SetTyping(a.ID, true)

	if !store.IsTyping(a.ID) {
		t.Fatalf("room A should be typing")
	}
	if store.IsTyping(b.ID) {
		t.Fatalf("typing flag leaked into room B")
	}

	store.SetTyping(a.ID, false)
	if store.IsTyping(a.ID) {
		t.Fatalf("room A typing should be cleared")
	}
}

func TestLoadMoreMessagesPrependsOlderBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	room := store.CreateChatroom(ctx, "History")

	existing, err := store.AddMessage(ctx, room.ID, "current", domain.RoleUser, "")
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	batch, err := store.LoadMoreMessages(ctx, room.ID)
	if err != nil {
		t.Fatalf("LoadMoreMessages: %v", err)
	}
	if len(batch) != historyBatchSize {
		t.Fatalf("batch size: want=%d got=%d", historyBatchSize, len(batch))
	}

	for i := 1; i < len(batch); i++ {
		if !batch[i-1].Timestamp.Before(batch[i].Timestamp) {
			t.Fatalf("batch timestamps not strictly increasing at %d", i)
		}
	}
	for i, msg := range batch {
		if !msg.Timestamp.Before(existing.Timestamp) {
			t.Fatalf("batch message %d is not older than existing messages", i)
		}
	}

	msgs, err := store.Messages(room.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != historyBatchSize+1 {
		t.Fatalf("messages after load more: want=%d got=%d", historyBatchSize+1, len(msgs))
	}
	if msgs[len(msgs)-1].ID != existing.ID {
		t.Fatalf("existing message should remain last")
	}
}

func TestLoadMoreMessagesRepeatedStaysOlder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	room := store.CreateChatroom(ctx, "Deep History")

	if _, err := store.LoadMoreMessages(ctx, room.ID); err != nil {
		t.Fatalf("first LoadMoreMessages: %v", err)
	}
	msgsBefore, _ := store.Messages(room.ID)
	oldest := msgsBefore[0].Timestamp

	batch, err := store.LoadMoreMessages(ctx, room.ID)
	if err != nil {
		t.Fatalf("second LoadMoreMessages: %v", err)
	}
	for i, msg := range batch {
		if !msg.Timestamp.Before(oldest) {
			t.Fatalf("second batch message %d not older than previous oldest", i)
		}
	}

	msgsAfter, _ := store.Messages(room.ID)
	if len(msgsAfter) != 2*historyBatchSize {
		t.Fatalf("messages after two loads: want=%d got=%d", 2*historyBatchSize, len(msgsAfter))
	}
}

func TestLoadMoreMessagesUnknownRoomFails(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.LoadMoreMessages(context.Background(), "no-such-room"); err == nil {
		t.Fatalf("expected error for unknown chatroom")
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	state, err := storage.NewFileStore(storage.FileConfig{BasePath: dir})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	first := NewStore(state)
	room := first.CreateChatroom(ctx, "Persistent")
	if _, err := first.AddMessage(ctx, room.ID, "remember me", domain.RoleUser, ""); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	second := NewStore(state)
	second.Initialize(ctx)

	rooms := second.Chatrooms("")
	if len(rooms) != 1 || rooms[0].ID != room.ID {
		t.Fatalf("restored rooms: %+v", rooms)
	}
	msgs, err := second.Messages(room.ID)
	if err != nil {
		t.Fatalf("Messages after restore: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "remember me" {
		t.Fatalf("restored messages: %+v", msgs)
	}
	// Typing flags are transient and never restored.
	if second.IsTyping(room.ID) {
		t.Fatalf("typing flag should not survive restart")
	}
}

func TestMessageTimestampsAreRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	room := store.CreateChatroom(ctx, "Clock")

	before := time.Now()
	msg, err := store.AddMessage(ctx, room.ID, "now", domain.RoleUser, "")
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	after := time.Now()

	if msg.Timestamp.Before(before) || msg.Timestamp.After(after) {
		t.Fatalf("timestamp outside call window: %v", msg.Timestamp)
	}
}
