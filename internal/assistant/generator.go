// Package assistant provides the response-generation collaborator. The only
// implementation is a simulation: canned replies behind a randomized delay.
package assistant

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// Generator produces an assistant reply for a user message.
type Generator interface {
	Generate(ctx context.Context, userMessage string) (string, error)
}

// Config bounds the simulated thinking time.
type Config struct {
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

var cannedReplies = []string{
	"That's an interesting question! Let me think about that for a moment.",
	"I understand what you're asking. Here's my perspective on this topic.",
	"Great question! I'd be happy to help you with that.",
	"That's a fascinating topic. Let me break this down for you.",
	"I see what you mean. Here's how I would approach this.",
	"Thanks for sharing that with me. Here's what I think.",
	"That's a complex question with several aspects to consider.",
	"I appreciate you asking about this. Let me explain.",
	"That's a really good point. Here's my take on it.",
	"Interesting! I have some thoughts on this that might help.",
}

const (
	greetingReply = "Hello! I'm your AI assistant. How can I help you today?"
	helpReply     = "I'm here to help! You can ask me questions about various topics, and I'll do my best to provide helpful and informative responses."
	codeReply     = "I'd be happy to help with coding questions! Whether you need help with debugging, learning new concepts, or writing code, I'm here to assist."
)

// Simulated implements Generator with canned replies and a random delay
// between the configured bounds. Safe for concurrent use.
type Simulated struct {
	cfg Config
}

// NewSimulated creates a simulated generator.
func NewSimulated(cfg Config) *Simulated {
	return &Simulated{cfg: cfg}
}

// Generate returns a reply after the simulated thinking time. It fails only
// when the context is cancelled first.
func (g *Simulated) Generate(ctx context.Context, userMessage string) (string, error) {
	if delay := g.thinkingTime(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	lower := strings.ToLower(userMessage)
	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		return greetingReply, nil
	case strings.Contains(lower, "help"):
		return helpReply, nil
	case strings.Contains(lower, "code") || strings.Contains(lower, "programming"):
		return codeReply, nil
	}

	return cannedReplies[rand.Intn(len(cannedReplies))], nil
}

func (g *Simulated) thinkingTime() time.Duration {
	if g.cfg.MaxDelay <= g.cfg.MinDelay {
		return g.cfg.MinDelay
	}
	return g.cfg.MinDelay + time.Duration(rand.Int63n(int64(g.cfg.MaxDelay-g.cfg.MinDelay)))
}
