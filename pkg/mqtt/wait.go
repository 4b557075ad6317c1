package mqtt

import (
	"context"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultPublishTimeout bounds how long a caller waits for a publish to be acknowledged.
const DefaultPublishTimeout = 5 * time.Second

// ErrPublishTimeout is returned when a token did not complete within the timeout.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// WaitToken waits for token to complete, for ctx to be done, or for timeout to pass,
// whichever comes first. A non-positive timeout uses DefaultPublishTimeout.
// While paho is reconnecting, QoS 1 and 2 tokens stay pending until the broker is back.
func WaitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}
