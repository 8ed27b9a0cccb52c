// Package websocket exposes a transport pipe over a websocket, one
// binary message per chunk.
package websocket

import (
	"context"
	"io"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/uartpipe/pkg/framework"
	"github.com/robotalks/uartpipe/pkg/pipe"
)

// DefaultReadSize is the max size of a message sent to the client.
const DefaultReadSize = 256

// Session wraps websocket.Conn for message based read/write.
type Session websocket.Conn

// NewSession wraps websocket.Conn.
func NewSession(conn *websocket.Conn) *Session {
	return (*Session)(conn)
}

// ReadPacket reads one message.
func (s *Session) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(s), &pkt)
	return
}

// WritePacket writes one binary message.
func (s *Session) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(s), pkt)
}

// Handler serves a single websocket session at a time. Extra sessions
// are closed immediately.
type Handler struct {
	Conn     *pipe.Conn
	ReadSize int

	busy chan struct{}
}

// NewHandler creates a Handler.
func NewHandler(conn *pipe.Conn) *Handler {
	return &Handler{Conn: conn, busy: make(chan struct{}, 1)}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serve).ServeHTTP(w, r)
}

func (h *Handler) serve(ws *websocket.Conn) {
	select {
	case h.busy <- struct{}{}:
	default:
		glog.Warningf("websocket %s rejected: session in use", ws.Request().RemoteAddr)
		ws.Close()
		return
	}
	defer func() { <-h.busy }()
	glog.Infof("websocket %s connected", ws.Request().RemoteAddr)
	if err := h.Serve(ws.Request().Context(), ws); err != nil {
		glog.Errorf("websocket %s error: %v", ws.Request().RemoteAddr, err)
	}
	glog.Infof("websocket %s disconnected", ws.Request().RemoteAddr)
}

// Serve forwards messages of ws to the pipe and received bytes back until
// either side closes or ctx is done.
func (h *Handler) Serve(ctx context.Context, ws *websocket.Conn) error {
	s := NewSession(ws)
	return fx.NewRunnerWith(ctx).StopOnExit().
		Go(fx.NamedRun("ws-rx", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, ws, func() error {
				for {
					pkt, err := s.ReadPacket()
					if err == io.EOF {
						return nil
					}
					if err != nil {
						return err
					}
					if _, err := h.Conn.Write(pkt); err != nil {
						return err
					}
				}
			})
		}))).
		Go(fx.NamedRun("ws-tx", fx.RunFunc(func(ctx context.Context) error {
			size := h.ReadSize
			if size <= 0 {
				size = DefaultReadSize
			}
			buf := make([]byte, size)
			for {
				n, err := h.Conn.ReadContext(ctx, buf)
				if n > 0 {
					if err := s.WritePacket(buf[:n]); err != nil {
						return err
					}
				}
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
			}
		}))).
		Wait()
}
