package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMqttService_NotConnected(t *testing.T) {
	s := NewMqttService(nil, "tcp://localhost:1883", "agent-test", "")

	token := s.Publish("attendance/records", 1, false, []byte("{}"))
	assert.True(t, token.Wait())
	assert.ErrorIs(t, token.Error(), ErrNotConnected)

	select {
	case <-token.Done():
	default:
		t.Fatal("token should already be done")
	}

	err := s.Stop()
	assert.EqualError(t, err, "mqtt service is not running")
}

type pendingToken struct{ done chan struct{} }

func (p *pendingToken) Wait() bool                     { <-p.done; return true }
func (p *pendingToken) WaitTimeout(time.Duration) bool { return false }
func (p *pendingToken) Done() <-chan struct{}          { return p.done }
func (p *pendingToken) Error() error                   { return nil }

func TestWaitToken(t *testing.T) {
	err := WaitToken(context.Background(), newErrorToken(ErrNotConnected), time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)

	pending := &pendingToken{done: make(chan struct{})}
	start := time.Now()
	err = WaitToken(context.Background(), pending, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrPublishTimeout)
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitToken(ctx, pending, time.Minute), context.Canceled)

	close(pending.done)
	assert.NoError(t, WaitToken(context.Background(), pending, time.Minute))
}
