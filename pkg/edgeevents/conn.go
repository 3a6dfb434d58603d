// Package edgeevents implements the persistent stream between a client and
// the edge event service of its selected site.
package edgeevents

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/httputil"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

var (
	ErrMissingCookies = errors.New("session cookie and edge events cookie are required")
	ErrNotOpen        = errors.New("edge event stream is not open")
	// ErrReceiveFailed is reported to the sink when the stream breaks.
	// The Conn stays open until Close.
	ErrReceiveFailed = errors.New("edge event stream receive failed")
)

// Conn is a client's stream to the edge event service. The zero value is
// not usable; create one with New.
type Conn struct {
	host string
	port int
	sink EventSink

	sessionCookie    string
	edgeEventsCookie string
	path             string
	tls              bool
	writeTimeout     time.Duration
	dialer           *websocket.Dialer
	audit            log.AuditLogger
	testerOpts       []nettest.OpOption

	mu      sync.Mutex
	session *session

	writeMu sync.Mutex

	paused     atomic.Bool
	lastPosted atomic.Pointer[apiv1.Statistics]
}

// session is one open stream. Its fields are fixed once published.
type session struct {
	// id correlates audit entries of one stream.
	id       string
	endpoint string
	ws       *websocket.Conn
	cancel   context.CancelFunc
	done     chan struct{}
}

// New returns a closed Conn to the edge event service at host:port that
// delivers server events to sink.
func New(host string, port int, sink EventSink, opts ...OpOption) *Conn {
	op := &Op{}
	op.applyOpts(opts)

	dialer := &websocket.Dialer{
		HandshakeTimeout: op.dialTimeout,
	}
	if op.insecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	if sink == nil {
		sink = SinkFuncs{}
	}

	return &Conn{
		host:             host,
		port:             port,
		sink:             sink,
		sessionCookie:    op.sessionCookie,
		edgeEventsCookie: op.edgeEventsCookie,
		path:             op.path,
		tls:              op.tls,
		writeTimeout:     op.writeTimeout,
		dialer:           dialer,
		audit:            op.auditLogger,
		testerOpts:       op.testerOpts,
	}
}

// Open dials the service, sends the init message carrying both cookies and
// the optional device info, and starts the reader. It returns true if the
// stream is open, including when it already was.
func (c *Conn) Open(ctx context.Context, deviceInfo *apiv1.DeviceInfo) bool {
	if c.sessionCookie == "" || c.edgeEventsCookie == "" {
		log.Logger.Warnw("cannot open edge event stream", "error", ErrMissingCookies)
		return false
	}
	if !c.IsShutdown() {
		return true
	}

	endpoint, err := httputil.WebSocketURL(c.host, c.port, c.path, c.tls)
	if err != nil {
		log.Logger.Warnw("invalid edge event endpoint", "host", c.host, "port", c.port, "error", err)
		return false
	}

	// mu is not held across the handshake
	ws, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		log.Logger.Warnw("failed to dial edge event service", "endpoint", endpoint, "error", err)
		return false
	}

	rctx, rcancel := context.WithCancel(context.Background())
	sess := &session{
		id:       uuid.New().String(),
		endpoint: endpoint,
		ws:       ws,
		cancel:   rcancel,
		done:     make(chan struct{}),
	}

	init := &apiv1.ClientEdgeEvent{
		EventType:        apiv1.ClientEventInitConnection,
		SessionCookie:    c.sessionCookie,
		EdgeEventsCookie: c.edgeEventsCookie,
		DeviceInfo:       deviceInfo,
	}
	if err := c.write(sess, init); err != nil {
		log.Logger.Warnw("failed to send init message", "endpoint", endpoint, "error", err)
		rcancel()
		_ = ws.Close()
		return false
	}

	c.mu.Lock()
	if c.session != nil {
		// a concurrent Open won
		c.mu.Unlock()
		rcancel()
		_ = ws.Close()
		return true
	}
	c.session = sess
	c.mu.Unlock()

	go c.readLoop(rctx, sess)

	log.Logger.Infow("edge event stream opened", "endpoint", endpoint, "sessionID", sess.id)
	return true
}

// Close sends a best-effort terminate message, stops the reader and waits
// for it to exit. Calling Close on a closed Conn is a no-op.
// Close must not be called from an EventSink callback.
func (c *Conn) Close() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}

	if err := c.write(sess, &apiv1.ClientEdgeEvent{EventType: apiv1.ClientEventTerminateConnection}); err != nil {
		log.Logger.Debugw("failed to send terminate message", "error", err)
	}
	sess.cancel()

	c.writeMu.Lock()
	_ = sess.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	_ = sess.ws.Close()

	<-sess.done
	log.Logger.Infow("edge event stream closed", "sessionID", sess.id)
}

// IsShutdown returns true unless the stream is open.
func (c *Conn) IsShutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == nil
}

// Send writes one client event on the stream, returning false if the
// stream is not open or the write fails.
func (c *Conn) Send(ev *apiv1.ClientEdgeEvent) bool {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		log.Logger.Debugw("cannot send edge event", "eventType", ev.EventType, "error", ErrNotOpen)
		return false
	}
	if err := c.write(sess, ev); err != nil {
		log.Logger.Warnw("failed to send edge event", "eventType", ev.EventType, "error", err)
		return false
	}
	return true
}

func (c *Conn) write(sess *session, ev *apiv1.ClientEdgeEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := sess.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if err := sess.ws.WriteJSON(ev); err != nil {
		return err
	}

	c.audit.Log(
		log.WithSessionID(sess.id),
		log.WithStage(log.StageSent),
		log.WithEndpoint(sess.endpoint),
		log.WithEventType(string(ev.EventType)),
		log.WithData(ev),
	)
	return nil
}

func (c *Conn) readLoop(ctx context.Context, sess *session) {
	defer close(sess.done)

	for {
		_, msg, err := sess.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				log.Logger.Debugw("edge event reader stopped", "sessionID", sess.id)
				return
			}
			log.Logger.Warnw("edge event stream receive failed", "sessionID", sess.id, "error", err)
			c.sink.OnError(fmt.Errorf("%w: %w", ErrReceiveFailed, err))
			return
		}

		ev := new(apiv1.ServerEdgeEvent)
		if err := json.Unmarshal(msg, ev); err != nil {
			log.Logger.Warnw("failed to decode server event", "sessionID", sess.id, "error", err)
			c.sink.OnError(fmt.Errorf("failed to decode server event: %w", err))
			continue
		}

		c.audit.Log(
			log.WithSessionID(sess.id),
			log.WithStage(log.StageReceived),
			log.WithEndpoint(sess.endpoint),
			log.WithEventType(string(ev.EventType)),
			log.WithData(ev),
		)

		if ctx.Err() != nil {
			return
		}
		c.sink.OnEvent(ev)
	}
}
