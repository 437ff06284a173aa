package notify

import (
	"sync"

	"golang.org/x/time/rate"
)

// ChatLimiter keeps one token bucket per chat.
type ChatLimiter struct {
	chats map[string]*rate.Limiter
	mu    sync.RWMutex
	r     rate.Limit
	b     int
}

// NewChatLimiter creates a limiter allowing r messages per second per chat
// with bursts of b.
func NewChatLimiter(r rate.Limit, b int) *ChatLimiter {
	return &ChatLimiter{
		chats: make(map[string]*rate.Limiter),
		r:     r,
		b:     b,
	}
}

// Allow reports whether chat may receive a message now, spending a token
// if so.
func (c *ChatLimiter) Allow(chat string) bool {
	return c.limiter(chat).Allow()
}

func (c *ChatLimiter) limiter(chat string) *rate.Limiter {
	c.mu.RLock()
	l, ok := c.chats[chat]
	c.mu.RUnlock()
	if ok {
		return l
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.chats[chat]; ok {
		return l
	}
	l = rate.NewLimiter(c.r, c.b)
	c.chats[chat] = l
	return l
}
