// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Event is one record from the bridge's SSE stream.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Turn      int             `json:"turn"`
	Timestamp int64           `json:"timestamp"`
}

// ConnectedEventType is the synthetic event the broadcaster emits on every
// successful (re)connect, so the remote-function registry can mark all
// remote functions unregistered (§4.L3).
const ConnectedEventType = "connected"

// broadcaster is the single-writer, multi-reader fan-out for the bridge's
// SSE stream (§4.L3's concurrency contract).
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 256)
	b.subscribers[id] = ch
	return id, ch
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than block the single writer.
			// Backpressure policy (§5) is enforced one layer up, per
			// consumer, against the turn-start-never-dropped rule.
		}
	}
}

// Subscribe returns a channel of events and an unsubscribe function. Run
// must be running (typically started once at process startup) for events
// to flow.
func (c *Client) Subscribe() (<-chan Event, func()) {
	id, ch := c.broadcaster.subscribe()
	return ch, func() { c.broadcaster.unsubscribe(id) }
}

// Run connects to GET /events and republishes every event to subscribers
// until ctx is cancelled. On a stream error it reconnects with exponential
// backoff (min 1s, cap 30s per §4.L3) and publishes a synthetic "connected"
// event on every successful (re)connect.
func (c *Client) Run(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 1 * time.Second
	policy.MaxInterval = 30 * time.Second
	policy.Multiplier = 2

	for {
		if ctx.Err() != nil {
			return
		}

		err := c.streamOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("bridge event stream disconnected, reconnecting", "error", err)
		}

		delay := policy.NextBackOff()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) streamOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.standard.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.broadcaster.publish(Event{Type: ConnectedEventType, Timestamp: time.Now().Unix()})

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var dataLines []string
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		switch {
		case line == "":
			if len(dataLines) > 0 {
				c.handleSSEPayload(strings.Join(dataLines, "\n"))
				dataLines = nil
			}
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

func (c *Client) handleSSEPayload(data string) {
	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		slog.Warn("failed to decode bridge SSE payload", "error", err)
		return
	}
	c.broadcaster.publish(ev)
}
