// Package websocket serves a board UART as a websocket terminal.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/uartecho/pkg/framework"
	"github.com/robotalks/uartecho/pkg/sim/machine"
)

const connQueueSize = 64

// Board is the part of the simulated board used by the handler.
type Board interface {
	Input(port int, data []byte) (int, error)
	Subscribe(port int, h machine.OutputHandler) error
}

// Handler is an http.Handler accepting websocket connections. Each message
// received is delivered to the UART, and bytes transmitted by the UART are
// sent to all connections.
type Handler struct {
	Port int

	board Board
	lock  sync.Mutex
	conns map[*websocket.Conn]chan []byte
}

// NewHandler creates a Handler.
func NewHandler(board Board, port int) (*Handler, error) {
	h := &Handler{Port: port, board: board, conns: make(map[*websocket.Conn]chan []byte)}
	if err := board.Subscribe(port, machine.HandleOutputFunc(h.broadcast)); err != nil {
		return nil, err
	}
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serveConn).ServeHTTP(w, r)
}

func (h *Handler) broadcast(_ int, data []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for conn, ch := range h.conns {
		select {
		case ch <- append([]byte(nil), data...):
		default:
			glog.Warningf("%s: websocket send queue full, %d bytes dropped", conn.Request().RemoteAddr, len(data))
		}
	}
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	ch := make(chan []byte, connQueueSize)
	doneCh := make(chan struct{})
	h.lock.Lock()
	h.conns[conn] = ch
	h.lock.Unlock()
	remote := conn.Request().RemoteAddr
	glog.Infof("%s: websocket connected to uart%d", remote, h.Port)

	defer func() {
		h.lock.Lock()
		delete(h.conns, conn)
		h.lock.Unlock()
		close(doneCh)
		conn.Close()
		glog.Infof("%s: websocket disconnected", remote)
	}()

	go func() {
		for {
			select {
			case <-doneCh:
				return
			case data := <-ch:
				if err := websocket.Message.Send(conn, data); err != nil {
					glog.Errorf("%s: websocket send error: %v", remote, err)
					return
				}
			}
		}
	}()

	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return
		}
		n, err := h.board.Input(h.Port, msg)
		if err != nil {
			glog.Errorf("%s: %v", remote, err)
			return
		}
		if n < len(msg) {
			glog.Warningf("%s: uart%d receive FIFO full, %d bytes dropped", remote, h.Port, len(msg)-n)
		}
	}
}

// Server serves a Handler on an address.
type Server struct {
	Addr    string
	Handler *Handler
}

// Name implements Named.
func (s *Server) Name() string {
	return "websocket"
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/uart", s.Handler)
	srv := &http.Server{Addr: s.Addr, Handler: mux}
	glog.Infof("websocket terminal listening on %s/uart", s.Addr)
	return fx.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
}
