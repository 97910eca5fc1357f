// Package sse fans reload notifications out to the open pages of an account.
package sse

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

func (h *Hub) Subscribe(account string) (chan []byte, func()) {
	account = strings.ToLower(account)
	ch := make(chan []byte, 8)
	h.mu.Lock()
	if _, ok := h.subs[account]; !ok {
		h.subs[account] = make(map[chan []byte]struct{})
	}
	h.subs[account][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if subscribers, ok := h.subs[account]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(h.subs, account)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Broadcast delivers payload to every subscriber of the given accounts.
// Slow subscribers miss the message rather than block the sender.
func (h *Hub) Broadcast(accounts []string, payload []byte) {
	if len(accounts) == 0 {
		return
	}
	unique := map[string]struct{}{}
	for _, account := range accounts {
		if account == "" {
			continue
		}
		unique[strings.ToLower(account)] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for account := range unique {
		for ch := range h.subs[account] {
			select {
			case ch <- payload:
			default:
			}
		}
	}
}

// NotifyReload tells the accounts' pages that their lists changed.
func (h *Hub) NotifyReload(accounts []string, method string, emailID uint64) {
	h.Broadcast(accounts, Event("reload", map[string]any{
		"method":  method,
		"emailId": emailID,
	}))
}

// Event formats one server-sent event frame.
func Event(name string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", name, payload))
}
