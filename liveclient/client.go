// liveclient keeps a websocket open to the exploration server and forwards
// map updates to a FrameHandler. When the connection drops it waits a fixed
// delay and dials again, with a fresh client id, until stopped.
package liveclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mapview/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultReconnectDelay is the fixed wait between a closure and the next dial.
	DefaultReconnectDelay = 1000 * time.Millisecond
	// DefaultGreeting is sent once on every new connection.
	DefaultGreeting = "Initializing connection"
	// Ids are drawn from [0, maxID).
	maxID = 100

	handshakeTimeout = 5 * time.Second
)

// State is the connection state of the client.
type State int32

const (
	Connecting State = iota
	Open
	Closed
)

func (state State) String() string {
	switch state {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// FrameHandler receives every valid map update, in arrival order, from a single goroutine.
type FrameHandler interface {
	HandleFrame(models.Frame)
}

// FrameHandlerFunc adapts a func to a FrameHandler.
type FrameHandlerFunc func(models.Frame)

func (fn FrameHandlerFunc) HandleFrame(frame models.Frame) {
	fn(frame)
}

// Client owns at most one connection at a time. Run drives the
// connect/read/reconnect loop; Stop ends it.
type Client struct {
	host     string
	secure   bool
	handler  FrameHandler
	greeting string
	delay    time.Duration
	dialer   *websocket.Dialer

	// nextID picks the Id query parameter for each dial.
	nextID func() int
	// after produces the reconnect timer.
	after func(time.Duration) <-chan time.Time

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithReconnectDelay sets the wait between a closure and the next dial.
func WithReconnectDelay(delay time.Duration) Option {
	return func(cli *Client) { cli.delay = delay }
}

// WithGreeting sets the text message sent when a connection opens.
func WithGreeting(greeting string) Option {
	return func(cli *Client) { cli.greeting = greeting }
}

// WithSecure selects wss instead of ws.
func WithSecure(secure bool) Option {
	return func(cli *Client) { cli.secure = secure }
}

// WithDialer replaces the websocket dialer, e.g. for tls settings.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(cli *Client) { cli.dialer = dialer }
}

// New returns a client for the server at host (host or host:port). Nothing is
// dialed until Run is called.
func New(host string, handler FrameHandler, opts ...Option) *Client {
	cli := &Client{
		host:     host,
		handler:  handler,
		greeting: DefaultGreeting,
		delay:    DefaultReconnectDelay,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		nextID: func() int { return rand.Intn(maxID) },
		after:  time.After,
		stop:   make(chan struct{}),
	}
	cli.state.Store(int32(Closed))
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// State returns the current connection state.
func (cli *Client) State() State {
	return State(cli.state.Load())
}

func (cli *Client) setState(state State) {
	cli.state.Store(int32(state))
}

// Stop ends Run: an open connection is closed normally, and a pending reconnect
// is abandoned. Stop may be called more than once, and before Run.
func (cli *Client) Stop() {
	cli.stopOnce.Do(func() { close(cli.stop) })
}

// Run connects and reconnects until ctx is cancelled or Stop is called, and then
// returns nil. Retries are unbounded and always wait the same delay.
func (cli *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-cli.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		err := cli.session(ctx)
		cli.setState(Closed)
		if ctx.Err() != nil {
			return nil
		}
		logClosure(err)

		select {
		case <-ctx.Done():
			return nil
		case <-cli.after(cli.delay):
		}
	}
}

// URL returns the websocket address for the given client id.
func (cli *Client) URL(id int) string {
	scheme := "ws"
	if cli.secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     cli.host,
		Path:     "/websocket",
		RawQuery: url.Values{"Id": []string{strconv.Itoa(id)}}.Encode(),
	}
	return u.String()
}

// session runs a single connection from dial to closure. Messages are decoded
// and dispatched on the calling goroutine's reader, one at a time.
func (cli *Client) session(ctx context.Context) error {
	cli.setState(Connecting)
	id := cli.nextID()
	logger := log.With().
		Str("session", uuid.NewString()).
		Int("id", id).
		Logger()

	addr := cli.URL(id)
	conn, _, err := cli.dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	ws := newWebsock(conn)
	defer ws.Close()
	cli.setState(Open)
	logger.Info().Str("url", addr).Msg("connection open")

	err = ws.Write(ctx, func(conn *websocket.Conn) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, []byte(cli.greeting))
	})
	if err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return cli.readMessages(groupCtx, ws, logger)
	})
	group.Go(func() error {
		// Closing the socket is the only way to unblock the reader.
		<-groupCtx.Done()
		ws.Close()
		return nil
	})
	return group.Wait()
}

// readMessages reads until the connection fails. Errors returned by websocket
// read methods are permanent, so any read error ends the session. Bad payloads
// only drop the message.
func (cli *Client) readMessages(
	ctx context.Context,
	ws *websock,
	logger zerolog.Logger,
) error {
	for {
		_, data, err := ws.Conn().ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		cli.dispatch(data, logger)
	}
}

func (cli *Client) dispatch(data []byte, logger zerolog.Logger) {
	msg, err := Decode(data)
	if err != nil {
		logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping message")
		return
	}

	switch msg := msg.(type) {
	case LogMessage:
		logger.Info().Str("log", msg.Text).Msg("server log")
	case StateUpdate:
		cli.handler.HandleFrame(msg.Frame)
	}
}

// logClosure records why a session ended.
func logClosure(err error) {
	var closeErr *websocket.CloseError
	switch {
	case isClosure(err):
		errors.As(err, &closeErr)
		log.Info().Int("code", closeErr.Code).Str("text", closeErr.Text).Msg("connection closed")
	case isError(err):
		errors.As(err, &closeErr)
		log.Warn().Int("code", closeErr.Code).Str("text", closeErr.Text).Msg("connection closed unexpectedly")
	default:
		log.Warn().Err(err).Msg("connection lost")
	}
}
