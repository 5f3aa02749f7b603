// Package presence implements the mesh hub's presence registry (C3): three
// in-process, volatile maps (task, user, agent) of subscriber streams. Never
// persisted — rebuilt on reconnect — and owned exclusively by this package.
// Broadcast snapshots the subscriber list under lock, releases the lock, and
// only then sends to each stream, so a slow or blocked subscriber can't hold
// up registration/deregistration on other streams.
package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Stream is anything that can receive a push event. The WebSocket adapter in
// internal/api implements this over github.com/coder/websocket; tests use an
// in-memory fake.
type Stream interface {
	// Send writes data to the peer. A non-nil error marks the stream for
	// removal by the caller.
	Send(ctx context.Context, data []byte) error
}

// Registry holds the three subscriber maps. All access goes through a single
// RWMutex shared by the three maps; callers are themselves single-threaded (one goroutine per
// connection), so cross-stream ordering is deliberately not guaranteed
// (spec §4.3).
type Registry struct {
	mu           sync.RWMutex
	byTask       map[string]map[string]Stream
	byUser       map[string]map[string]Stream
	byAgent      map[string]map[string]Stream
	writeTimeout time.Duration
	logger       *slog.Logger
}

// New creates an empty registry. writeTimeout bounds each individual send.
func New(writeTimeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Registry{
		byTask:       make(map[string]map[string]Stream),
		byUser:       make(map[string]map[string]Stream),
		byAgent:      make(map[string]map[string]Stream),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// ConnectTask subscribes streamID to a task's event stream.
func (r *Registry) ConnectTask(taskID, streamID string, s Stream) { r.connect(r.byTask, taskID, streamID, s) }

// ConnectUser subscribes streamID to a user's event stream.
func (r *Registry) ConnectUser(userID, streamID string, s Stream) { r.connect(r.byUser, userID, streamID, s) }

// ConnectAgent subscribes streamID to an agent's event stream.
func (r *Registry) ConnectAgent(agentID, streamID string, s Stream) { r.connect(r.byAgent, agentID, streamID, s) }

// DisconnectTask removes streamID's subscription to a task key.
func (r *Registry) DisconnectTask(taskID, streamID string) { r.disconnect(r.byTask, taskID, streamID) }

// DisconnectUser removes streamID's subscription to a user key.
func (r *Registry) DisconnectUser(userID, streamID string) { r.disconnect(r.byUser, userID, streamID) }

// DisconnectAgent removes streamID's subscription to an agent key.
func (r *Registry) DisconnectAgent(agentID, streamID string) { r.disconnect(r.byAgent, agentID, streamID) }

func (r *Registry) connect(m map[string]map[string]Stream, key, streamID string, s Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := m[key]; !ok {
		m[key] = make(map[string]Stream)
	}
	m[key][streamID] = s
}

func (r *Registry) disconnect(m map[string]map[string]Stream, key, streamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := m[key]; ok {
		delete(subs, streamID)
		if len(subs) == 0 {
			delete(m, key)
		}
	}
}

// SendToTask pushes event to every stream subscribed to taskID.
func (r *Registry) SendToTask(ctx context.Context, taskID string, event interface{}) {
	r.sendTo(ctx, r.byTask, taskID, event)
}

// SendToUser pushes event to every stream subscribed to userID.
func (r *Registry) SendToUser(ctx context.Context, userID string, event interface{}) {
	r.sendTo(ctx, r.byUser, userID, event)
}

// SendToAgent pushes event to every stream subscribed to agentID.
func (r *Registry) SendToAgent(ctx context.Context, agentID string, event interface{}) {
	r.sendTo(ctx, r.byAgent, agentID, event)
}

// sendTo enumerates current subscribers, attempts to send each; any send
// that fails is marked for removal and removed after the iteration
// completes (spec §4.3). Subscriber pointers are snapshotted under the lock
// and the lock is released before sending, so a slow or blocked peer never
// stalls connect/disconnect on other streams.
func (r *Registry) sendTo(ctx context.Context, m map[string]map[string]Stream, key string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to marshal presence event", "key", key, "error", err)
		return
	}

	r.mu.RLock()
	subs, ok := m[key]
	if !ok {
		r.mu.RUnlock()
		return
	}
	snapshot := make(map[string]Stream, len(subs))
	for id, s := range subs {
		snapshot[id] = s
	}
	r.mu.RUnlock()

	var failed []string
	for id, s := range snapshot {
		sendCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
		err := s.Send(sendCtx, data)
		cancel()
		if err != nil {
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		r.mu.Lock()
		if subs, ok := m[key]; ok {
			for _, id := range failed {
				delete(subs, id)
			}
			if len(subs) == 0 {
				delete(m, key)
			}
		}
		r.mu.Unlock()
	}
}

// TaskSubscriberCount reports how many streams are currently subscribed to taskID.
func (r *Registry) TaskSubscriberCount(taskID string) int { return r.count(r.byTask, taskID) }

// UserSubscriberCount reports how many streams are currently subscribed to userID.
func (r *Registry) UserSubscriberCount(userID string) int { return r.count(r.byUser, userID) }

// AgentSubscriberCount reports how many streams are currently subscribed to agentID.
func (r *Registry) AgentSubscriberCount(agentID string) int { return r.count(r.byAgent, agentID) }

func (r *Registry) count(m map[string]map[string]Stream, key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(m[key])
}
