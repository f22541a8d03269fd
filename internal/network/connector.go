package network

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrWrongPassword distinguishes an authentication failure from any
// other STA-connect error, since spec §4.I gives it a tighter retry
// budget (1 attempt instead of 3).
var ErrWrongPassword = errors.New("network: wrong password")

// STA is the platform WiFi station interface a Connector drives.
// Implementations talk to the actual radio; tests supply a fake.
type STA interface {
	Connect(ctx context.Context, ssid, password string) error
}

// Connector retries an STA.Connect call with a constant backoff built on
// github.com/cenkalti/backoff/v4: every retry waits the same 500 ms, and
// the delay does not grow from one attempt to the next.
type Connector struct {
	sta STA
}

// NewConnector wraps sta.
func NewConnector(sta STA) *Connector {
	return &Connector{sta: sta}
}

// Connect attempts ssid/password, retrying up to maxRetries more times
// 500 ms apart, and returns the last error. A wrong password stops the
// retries at once and is returned as ErrWrongPassword (so the caller's
// RecordFailure can tighten the budget).
func (c *Connector) Connect(ctx context.Context, ssid, password string, maxRetries int) error {
	bo := backoff.NewConstantBackOff(500 * time.Millisecond)
	limited := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx)

	return backoff.Retry(func() error {
		err := c.sta.Connect(ctx, ssid, password)
		if errors.Is(err, ErrWrongPassword) {
			return backoff.Permanent(err)
		}
		return err
	}, limited)
}
