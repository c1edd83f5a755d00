package liveclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSockCongestion indicates a write waited too long for another writer to finish.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Time a writer may wait for the write slot.
	writeDeadline = time.Second
	// Maximum message size allowed from peer. A full double-encoded grid is well under this.
	maxMessageSize = 1 << 16
)

// websock serializes writes to the websocket, which allows only one concurrent
// writer. There is a single reader per session, so reads are not wrapped.
type websock struct {
	// Merely a mutex, but channel semantics allow a timeout.
	writeSem  chan struct{}
	ws        *websocket.Conn
	closeOnce sync.Once
}

func newWebsock(ws *websocket.Conn) *websock {
	ws.SetReadLimit(maxMessageSize)
	return &websock{
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying websocket, for reading.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}

// Close sends a normal closure frame and closes the connection, which unblocks
// any pending read. It is safe to call more than once.
func (sock *websock) Close() {
	sock.closeOnce.Do(func() {
		select {
		case sock.writeSem <- struct{}{}:
			_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = sock.ws.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-sock.writeSem
		case <-time.After(writeDeadline):
		}
		sock.ws.Close()
	})
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}
