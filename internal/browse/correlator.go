package browse

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/scadad/internal/channel"
)

// sendFunc is the correlator call shape the planner and explorer build on.
type sendFunc func(ctx context.Context, target string, filter Filter, depth int) ([]Node, error)

// Correlator turns the fire-and-forget driver channel into a blocking call.
// One command is written per call; the matching reply is picked out of the
// connection's shared reply stream by token. The channel is not multiplexed,
// so a mutex serializes calls: a second Send on the same connection waits for
// the first to resolve.
type Correlator struct {
	ch      channel.Channel
	connID  string
	timeout time.Duration
	logger  *zap.Logger

	mu sync.Mutex
}

// NewCorrelator creates a correlator for one connection.
func NewCorrelator(ch channel.Channel, connectionID string, timeout time.Duration, logger *zap.Logger) *Correlator {
	if timeout <= 0 {
		timeout = DefaultLimits().ReplyTimeout()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		ch:      ch,
		connID:  connectionID,
		timeout: timeout,
		logger:  logger,
	}
}

// newToken builds a request token unique for the process lifetime: unix
// nanos plus a random suffix. Collision with a token pending on the same
// connection is what matters, not global uniqueness.
func newToken() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), suffix)
}

// Send writes a browse command and blocks until the matching reply arrives,
// the deadline elapses, or ctx is cancelled. Replies carrying any other
// token are ignored and listening continues.
func (c *Correlator) Send(ctx context.Context, target string, filter Filter, depth int) ([]Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := newToken()
	replyCh := make(chan []channel.RawNode, 1)

	sub, err := c.ch.Subscribe(c.connID, func(r channel.Reply) {
		if r.Token != token {
			// Stale or unrelated caller.
			return
		}
		select {
		case replyCh <- r.Nodes:
		default:
		}
	})
	if err != nil {
		return nil, &TransportError{Op: "subscribe", Err: err}
	}

	// Cleanup must run exactly once no matter which exit path fires first.
	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				c.logger.Warn("failed to release reply listener",
					zap.String("connection_id", c.connID),
					zap.Error(err))
			}
		})
	}
	defer release()

	if err := c.ch.SendBrowseCommand(ctx, c.connID, token, target, depth, string(filter)); err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case raw := <-replyCh:
		release()
		return nodesFromRaw(raw), nil
	case <-timer.C:
		release()
		c.logger.Warn("browse reply deadline elapsed",
			zap.String("connection_id", c.connID),
			zap.String("target", target),
			zap.Duration("timeout", c.timeout))
		return nil, fmt.Errorf("browse %q on %s: %w", target, c.connID, ErrBrowseTimeout)
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}
