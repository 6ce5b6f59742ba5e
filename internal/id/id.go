// Package id generates the prefixed identifiers used across the application.
//
// Chatroom and user ids are time-based with a random suffix
// (chat_1712345678901_k3v9x2m1q). Message ids embed a ULID with monotonic
// entropy so that ids generated within the same millisecond still sort in
// append order.
package id

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"
)

const (
	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixSize     = 9
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewChatroomID returns a fresh chatroom identifier.
func NewChatroomID() string {
	return prefixed("chat")
}

// NewUserID returns a fresh user identifier.
func NewUserID() string {
	return prefixed("user")
}

// NewMessageID returns a fresh message identifier.
func NewMessageID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return "msg_" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func prefixed(prefix string) string {
	suffix, err := gonanoid.Generate(suffixAlphabet, suffixSize)
	if err != nil {
		// gonanoid only fails when the system entropy source does; at that
		// point the process has bigger problems than id quality.
		panic(fmt.Sprintf("id: generate random suffix: %v", err))
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}
