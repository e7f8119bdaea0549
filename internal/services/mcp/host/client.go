package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/musescore-mcp/internal/platform/timeouts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/websocket"
)

const (
	// DefaultHost is the MuseScore plugin's listen host.
	DefaultHost = "localhost"
	// DefaultPort is the MuseScore plugin's listen port.
	DefaultPort = 8765

	defaultOrigin = "http://localhost/"
	tracerName    = "github.com/louisbranch/musescore-mcp/internal/services/mcp/host"
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	DialTimeout    time.Duration
	// Tracer overrides the globally registered tracer.
	Tracer trace.Tracer
}

type dialFunc func(ctx context.Context, addr, origin string) (*websocket.Conn, error)

// Client is the single logical channel to one MuseScore instance.
//
// The channel is opened lazily on the first command, reused afterwards and
// dropped after any transport fault so the next command reconnects. A Client
// is safe for concurrent use, but callers are serialized: one command is in
// flight at a time.
type Client struct {
	url            string
	origin         string
	requestTimeout time.Duration
	dialTimeout    time.Duration
	tracer         trace.Tracer
	dial           dialFunc
	newID          func() string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient builds a disconnected client for ws://host:port.
func NewClient(opts Options) *Client {
	hostname := strings.TrimSpace(opts.Host)
	if hostname == "" {
		hostname = DefaultHost
	}
	port := opts.Port
	if port <= 0 {
		port = DefaultPort
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = timeouts.HostRequest
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = timeouts.HostDial
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Client{
		url:            (&url.URL{Scheme: "ws", Host: net.JoinHostPort(hostname, strconv.Itoa(port))}).String(),
		origin:         defaultOrigin,
		requestTimeout: requestTimeout,
		dialTimeout:    dialTimeout,
		tracer:         tracer,
		dial:           dialWebsocket,
		newID:          uuid.NewString,
	}
}

// URL returns the websocket address the client dials.
func (c *Client) URL() string {
	return c.url
}

// Connected reports whether a channel is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect opens the channel if it is not already open and reports success.
// Calling it while connected keeps the existing channel.
func (c *Client) Connect(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx) == nil
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, err := c.dial(dialCtx, c.url, c.origin)
	if err != nil {
		log.Printf("musescore connect failed: url=%s err=%v", c.url, err)
		return &Error{Kind: KindUnavailable, Op: "connect to MuseScore at " + c.url, Err: err}
	}
	c.conn = conn
	log.Printf("connected to MuseScore at %s", c.url)
	return nil
}

// Send performs one round trip: it connects if needed, writes the envelope and
// waits for exactly one reply. Failures are returned as *Error; after a failed
// write or read the channel is closed so the next call starts clean.
func (c *Client) Send(ctx context.Context, env Envelope) (Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	invocationID := c.newID()
	ctx, span := c.tracer.Start(ctx, "musescore.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("musescore.action", env.Action),
			attribute.String("musescore.invocation_id", invocationID),
			attribute.String("server.address", c.url),
		),
	)
	defer span.End()

	payload, err := env.Encode()
	if err != nil {
		err = &Error{Kind: KindInvalidRequest, Op: "encode command", Err: err}
		recordSpanError(span, err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	log.Printf("musescore send: invocation=%s action=%s bytes=%d", invocationID, env.Action, len(payload))
	started := time.Now()
	reply, err := c.roundTripLocked(ctx, payload)
	if err != nil {
		log.Printf("musescore send failed: invocation=%s action=%s err=%v", invocationID, env.Action, err)
		c.resetLocked()
		recordSpanError(span, err)
		return nil, err
	}
	log.Printf("musescore reply: invocation=%s action=%s elapsed=%s", invocationID, env.Action, time.Since(started).Round(time.Millisecond))
	span.SetStatus(codes.Ok, "")
	return reply, nil
}

// SendCommand is Send for callers that always want a record back: transport
// failures come back as an {"error", "kind"} reply instead of an error.
func (c *Client) SendCommand(ctx context.Context, action string, params any) Reply {
	reply, err := c.Send(ctx, Envelope{Action: action, Params: params})
	if err != nil {
		return ErrorReply(err)
	}
	return reply
}

// Close releases the channel. It is a no-op when already disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	log.Printf("disconnected from MuseScore at %s", c.url)
	return err
}

func (c *Client) roundTripLocked(ctx context.Context, payload []byte) (Reply, error) {
	conn := c.conn

	deadline := time.Now().Add(c.requestTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, &Error{Kind: KindTransport, Op: "set deadline", Err: err}
	}
	// Unblock the pending read or write as soon as the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := websocket.Message.Send(conn, string(payload)); err != nil {
		return nil, ioError(ctx, "send command", err)
	}
	var text string
	if err := websocket.Message.Receive(conn, &text); err != nil {
		return nil, ioError(ctx, "receive reply", err)
	}
	reply, err := decodeReply(text)
	if err != nil {
		return nil, &Error{Kind: KindMalformedReply, Op: "receive reply", Err: err}
	}
	return reply, nil
}

// resetLocked drops a channel whose framing state can no longer be trusted.
func (c *Client) resetLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		log.Printf("musescore close after failure: %v", err)
	}
	c.conn = nil
}

func ioError(ctx context.Context, op string, err error) error {
	kind := KindTransport
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		kind = KindCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	case isTimeout(err):
		kind = KindTimeout
	}
	if kind == KindTimeout {
		err = fmt.Errorf("no reply from MuseScore: %w", err)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.String("musescore.error_kind", string(KindOf(err))))
	span.SetStatus(codes.Error, err.Error())
}

func dialWebsocket(ctx context.Context, addr, origin string) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(addr, origin)
	if err != nil {
		return nil, err
	}
	return cfg.DialContext(ctx)
}
