package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu       sync.Mutex
	received [][]byte
	failNext bool
}

func (f *fakeStream) Send(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return errors.New("send failed")
	}
	f.received = append(f.received, data)
	return nil
}

func (f *fakeStream) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestRegistry_SendToTaskReachesSubscribers(t *testing.T) {
	r := New(time.Second, nil)
	s1 := &fakeStream{}
	s2 := &fakeStream{}
	r.ConnectTask("task-1", "stream-a", s1)
	r.ConnectTask("task-1", "stream-b", s2)

	r.SendToTask(context.Background(), "task-1", map[string]string{"type": "step.completed"})

	require.Equal(t, 1, s1.count())
	require.Equal(t, 1, s2.count())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(s1.received[0], &payload))
	require.Equal(t, "step.completed", payload["type"])
}

func TestRegistry_DisconnectStopsDelivery(t *testing.T) {
	r := New(time.Second, nil)
	s1 := &fakeStream{}
	r.ConnectUser("user-1", "stream-a", s1)
	r.DisconnectUser("user-1", "stream-a")

	r.SendToUser(context.Background(), "user-1", map[string]string{"type": "ping"})
	require.Equal(t, 0, s1.count())
}

func TestRegistry_FailedSendIsRemovedAfterIteration(t *testing.T) {
	r := New(time.Second, nil)
	s1 := &fakeStream{failNext: true}
	r.ConnectAgent("agent-1", "stream-a", s1)

	r.SendToAgent(context.Background(), "agent-1", map[string]string{"type": "x"})
	require.Equal(t, 0, r.AgentSubscriberCount("agent-1"))
}

func TestRegistry_UnknownKeyIsNoop(t *testing.T) {
	r := New(time.Second, nil)
	r.SendToTask(context.Background(), "does-not-exist", map[string]string{"type": "x"})
}

func TestRegistry_StreamCanSubscribeToMultipleKeys(t *testing.T) {
	r := New(time.Second, nil)
	s1 := &fakeStream{}
	r.ConnectTask("task-1", "stream-a", s1)
	r.ConnectUser("user-1", "stream-a", s1)

	r.SendToTask(context.Background(), "task-1", "a")
	r.SendToUser(context.Background(), "user-1", "b")
	require.Equal(t, 2, s1.count())
}
