package testutil

import (
	"fmt"
	"sync"
)

// RecordingReplier captures replies sent to chat users so tests can assert on them.
type RecordingReplier struct {
	mu      sync.Mutex
	Replies []string
}

// Reply records "user: text".
func (r *RecordingReplier) Reply(user, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, user+": "+text)
}

// All returns a copy of the recorded replies.
func (r *RecordingReplier) All() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Replies))
	copy(out, r.Replies)
	return out
}

// PrivmsgLine builds a raw Twitch IRC PRIVMSG line as sent by the chat server.
func PrivmsgLine(channel, user, text string) string {
	return fmt.Sprintf("@badge-info=;badges=;color=#1E90FF;display-name=%s;emotes=;id=b34ccfc7-4977-403a-8a94-33c6bac34fb8;mod=0;room-id=11148817;subscriber=0;tmi-sent-ts=1594545155039;turbo=0;user-id=40286300;user-type= :%s!%s@%s.tmi.twitch.tv PRIVMSG #%s :%s",
		user, user, user, user, channel, text)
}
