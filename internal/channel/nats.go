package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig configures the NATS-backed peripheral channel.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string `koanf:"url"`

	// SubjectPrefix is prepended to every subject. Drivers listen on
	// <prefix>.<connection>.browse.cmd and publish replies on
	// <prefix>.<connection>.browse.reply. Registry-change events arrive on
	// <prefix>.<connection>.registry.
	SubjectPrefix string `koanf:"subject_prefix"`
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() *NATSConfig {
	return &NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "peripheral",
	}
}

// Validate checks the config.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("nats url is required")
	}
	if c.SubjectPrefix == "" {
		return fmt.Errorf("nats subject_prefix is required")
	}
	return nil
}

// NATS is a Channel that reaches peripheral drivers over NATS subjects.
type NATS struct {
	conn     *nats.Conn
	prefix   string
	ownsConn bool
	logger   *zap.Logger
}

// NewNATS wraps an existing NATS connection. The caller keeps ownership of
// the connection.
func NewNATS(nc *nats.Conn, cfg *NATSConfig, logger *zap.Logger) (*NATS, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if cfg == nil {
		cfg = DefaultNATSConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid nats config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATS{conn: nc, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Dial connects to the configured NATS server and returns a channel that
// owns the connection.
func Dial(cfg *NATSConfig, logger *zap.Logger) (*NATS, error) {
	if cfg == nil {
		cfg = DefaultNATSConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid nats config: %w", err)
	}
	nc, err := nats.Connect(cfg.URL, nats.Name("scadad"))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	ch, err := NewNATS(nc, cfg, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	ch.ownsConn = true
	return ch, nil
}

func (n *NATS) cmdSubject(connectionID string) string {
	return fmt.Sprintf("%s.%s.browse.cmd", n.prefix, connectionID)
}

func (n *NATS) replySubject(connectionID string) string {
	return fmt.Sprintf("%s.%s.browse.reply", n.prefix, connectionID)
}

// SendBrowseCommand publishes a browse command for connectionID's driver.
func (n *NATS) SendBrowseCommand(ctx context.Context, connectionID, token, target string, depth int, filter string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := Command{Token: token, Target: target, Depth: depth, Filter: filter}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal browse command: %w", err)
	}
	if err := n.conn.Publish(n.cmdSubject(connectionID), data); err != nil {
		return fmt.Errorf("publish browse command: %w", err)
	}
	return nil
}

// Subscribe listens for driver replies on connectionID's reply subject.
// Malformed replies are logged and dropped rather than surfaced to the
// handler.
func (n *NATS) Subscribe(connectionID string, h Handler) (Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("handler is required")
	}
	sub, err := n.conn.Subscribe(n.replySubject(connectionID), func(msg *nats.Msg) {
		var reply Reply
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			n.logger.Warn("dropping malformed browse reply",
				zap.String("connection_id", connectionID),
				zap.Error(err))
			return
		}
		h(reply)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", n.replySubject(connectionID), err)
	}
	return &natsSub{sub: sub}, nil
}

// WatchAllRegistries watches registry announcements for every connection
// under the subject prefix. fn receives the connection ID parsed from the
// announcement subject.
func (n *NATS) WatchAllRegistries(fn func(connectionID string)) (Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("callback is required")
	}
	subject := fmt.Sprintf("%s.*.registry", n.prefix)
	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		id := strings.TrimPrefix(msg.Subject, n.prefix+".")
		id = strings.TrimSuffix(id, ".registry")
		if id == "" || id == msg.Subject {
			n.logger.Warn("ignoring registry event with unparseable subject",
				zap.String("subject", msg.Subject))
			return
		}
		fn(id)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return &natsSub{sub: sub}, nil
}

// Close drains the connection if this channel owns it.
func (n *NATS) Close() error {
	if !n.ownsConn {
		return nil
	}
	return n.conn.Drain()
}

type natsSub struct {
	sub *nats.Subscription
}

func (s *natsSub) Unsubscribe() error {
	if !s.sub.IsValid() {
		return nil
	}
	return s.sub.Unsubscribe()
}
