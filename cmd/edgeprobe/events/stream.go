package events

import (
	"context"
	"fmt"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/config"
	"github.com/leptonai/edgeprobe/pkg/edgeevents"
	"github.com/leptonai/edgeprobe/pkg/log"
)

// stream is the current edge event connection. It survives reconnects and
// moves to a new site, so close always reaches the live Conn.
type stream struct {
	cfg  *config.Config
	sink edgeevents.EventSink

	target *target
	conn   *edgeevents.Conn
}

func newStream(cfg *config.Config, tgt *target, sink edgeevents.EventSink) *stream {
	return &stream{
		cfg:    cfg,
		sink:   sink,
		target: tgt,
		conn:   newConn(cfg, tgt, sink),
	}
}

func (s *stream) open(ctx context.Context, info *apiv1.DeviceInfo) error {
	if !s.conn.Open(ctx, info) {
		return fmt.Errorf("failed to open edge event stream to %s:%d", s.target.host, s.target.port)
	}
	return nil
}

// reopen closes and reopens the stream to the same target.
func (s *stream) reopen(ctx context.Context, info *apiv1.DeviceInfo) error {
	s.conn.Close()
	return s.open(ctx, info)
}

// move closes the current stream and opens one to next.
// Pause state carries over to the new stream.
func (s *stream) move(ctx context.Context, next *target, info *apiv1.DeviceInfo) error {
	paused := s.conn.Paused()
	s.conn.Close()

	log.Logger.Infow("moving edge event stream", "from", s.target.host, "to", next.host)
	s.target = next
	s.conn = newConn(s.cfg, next, s.sink)
	if paused {
		s.conn.PauseSendingUpdates()
	}
	return s.open(ctx, info)
}

func (s *stream) close() {
	s.conn.Close()
}
