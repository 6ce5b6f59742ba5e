package domain

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Chatroom is a named conversation thread. LastMessage and LastMessageTime
// are derived fields, refreshed on every message append.
//
// JSON field names follow the persisted-state contract (camelCase), which is
// also the wire shape the web client expects.
type Chatroom struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastMessage     string     `json:"lastMessage,omitempty"`
	LastMessageTime *time.Time `json:"lastMessageTime,omitempty"`
}

// Message is a single chat entry. ID and Timestamp are assigned by the
// conversation store on append; messages are immutable thereafter.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	ImageURL  string    `json:"imageUrl,omitempty"`
}

// CreateChatroomRequest is the create-room payload.
type CreateChatroomRequest struct {
	Title string `json:"title" binding:"required"`
}

// SendMessageRequest is the send-message payload. Content may be empty when
// an image is attached.
type SendMessageRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// SendMessageResponse carries the appended user message and the generated
// assistant reply.
type SendMessageResponse struct {
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message"`
}
