package edgeevents

import (
	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/log"
)

// EventSink receives what the server pushes on an open Conn, one call at a
// time and in wire order. Implementations must not call Conn.Close from
// inside a callback.
type EventSink interface {
	OnEvent(ev *apiv1.ServerEdgeEvent)
	// OnError reports a receive failure other than cancellation by Close,
	// e.g. the server closing the stream or an undecodable message.
	OnError(err error)
}

var _ EventSink = &ChanSink{}

// ChanSink buffers events and errors in channels for callers to poll.
// When a buffer is full, new items are dropped and logged.
type ChanSink struct {
	events chan *apiv1.ServerEdgeEvent
	errs   chan error
}

func NewChanSink(size int) *ChanSink {
	return &ChanSink{
		events: make(chan *apiv1.ServerEdgeEvent, size),
		errs:   make(chan error, size),
	}
}

func (s *ChanSink) Events() <-chan *apiv1.ServerEdgeEvent {
	return s.events
}

func (s *ChanSink) Errors() <-chan error {
	return s.errs
}

func (s *ChanSink) OnEvent(ev *apiv1.ServerEdgeEvent) {
	select {
	case s.events <- ev:
	default:
		log.Logger.Warnw("event buffer full, dropping server event", "eventType", ev.EventType)
	}
}

func (s *ChanSink) OnError(err error) {
	select {
	case s.errs <- err:
	default:
		log.Logger.Warnw("error buffer full, dropping stream error", "error", err)
	}
}

// SinkFuncs adapts plain functions to EventSink; nil funcs are skipped.
type SinkFuncs struct {
	Event func(ev *apiv1.ServerEdgeEvent)
	Error func(err error)
}

func (f SinkFuncs) OnEvent(ev *apiv1.ServerEdgeEvent) {
	if f.Event != nil {
		f.Event(ev)
	}
}

func (f SinkFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
