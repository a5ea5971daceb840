// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sim

import (
	"sync"

	"github.com/google/uuid"

	"github.com/teradata-labs/ripple/pkg/types"
)

// eventRingCapacity bounds the retained event history.
const eventRingCapacity = 4096

// eventLog is an append-only ring of simulation events with live
// subscribers. Appends never block; a subscriber that cannot keep up loses
// events rather than stalling the kernel.
type eventLog struct {
	mu      sync.Mutex
	buf     []types.SimulationEvent
	next    int
	full    bool
	subs    map[int]chan types.SimulationEvent
	nextSub int
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{
		buf:  make([]types.SimulationEvent, capacity),
		subs: make(map[int]chan types.SimulationEvent),
	}
}

// Append stores one event, assigning its ID, and fans it out to subscribers.
func (l *eventLog) Append(e types.SimulationEvent) {
	e.ID = uuid.NewString()
	l.mu.Lock()
	l.buf[l.next] = e
	l.next++
	if l.next == len(l.buf) {
		l.next = 0
		l.full = true
	}
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	l.mu.Unlock()
}

// Recent returns the retained events oldest first, at most limit
// (limit <= 0 means all).
func (l *eventLog) Recent(limit int) []types.SimulationEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.SimulationEvent
	if l.full {
		out = append(out, l.buf[l.next:]...)
		out = append(out, l.buf[:l.next]...)
	} else {
		out = append(out, l.buf[:l.next]...)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Subscribe registers a buffered live feed. The cancel function is
// idempotent.
func (l *eventLog) Subscribe() (<-chan types.SimulationEvent, func()) {
	ch := make(chan types.SimulationEvent, 256)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
