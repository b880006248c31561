// file: telemetry/nats.go
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go-button-wars/logger"
)

// publisher is the part of *nats.Conn the sink needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event as JSON on "<prefix>.<type>".
type NATSSink struct {
	pub    publisher
	prefix string
	conn   *nats.Conn
}

// DialNATS connects to url and returns a sink publishing under prefix.
func DialNATS(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("go-button-wars"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("[NATSSink] Disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("[NATSSink] Reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	logger.Info().Str("url", url).Str("prefix", prefix).Msg("[DialNATS] ✅ Connected")
	s := newNATSSink(nc, prefix)
	s.conn = nc
	return s, nil
}

func newNATSSink(pub publisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "buttonwars"
	}
	return &NATSSink{pub: pub, prefix: prefix}
}

// Subject returns the subject an event type is published on.
func (s *NATSSink) Subject(eventType string) string {
	return s.prefix + "." + eventType
}

// Publish implements Sink. The nats client buffers writes, so this does not
// wait on the network.
func (s *NATSSink) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error().Err(err).Str("type", ev.Type).Msg("[NATSSink.Publish] Error marshalling event")
		return
	}
	if err := s.pub.Publish(s.Subject(ev.Type), data); err != nil {
		logger.Warn().Err(err).Str("type", ev.Type).Msg("[NATSSink.Publish] Publish failed")
	}
}

// Close drains pending messages and closes the connection.
func (s *NATSSink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
