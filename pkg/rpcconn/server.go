package rpcconn

import (
	"bufio"
	"io"
	"log"
	"net"
	"sync"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

// Handler answers one decoded request frame. It must not block on
// anything but the work the request itself requires; ServerConnection
// already runs every handler on its own goroutine so a slow request
// never head-of-line-blocks the others sharing the connection.
type Handler func(req *proto.Request) *proto.Response

// ServerConnection is the server side of one client's connection: it
// decodes request frames off conn in a single loop and hands each to
// handler on its own goroutine, serializing the writes the handlers
// produce back onto the same connection.
type ServerConnection struct {
	conn    net.Conn
	writeMu sync.Mutex
	logger  *log.Logger
}

// NewServerConnection wraps an already-accepted connection. logger may
// be nil, in which case log.Default() is used.
func NewServerConnection(conn net.Conn, logger *log.Logger) *ServerConnection {
	if logger == nil {
		logger = log.Default()
	}
	return &ServerConnection{conn: conn, logger: logger}
}

// Serve decodes requests off the connection until it is closed or a
// frame-level error makes the stream unrecoverable. It blocks; callers
// run it in its own goroutine per accepted connection.
func (s *ServerConnection) Serve(handler Handler) {
	defer s.conn.Close()
	r := bufio.NewReader(s.conn)
	var inFlight sync.WaitGroup
	for {
		req, err := proto.ReadRequest(r)
		if err != nil {
			if err != io.EOF {
				s.logger.Printf("rpcconn: read from %s failed: %v", s.conn.RemoteAddr(), err)
			}
			break
		}
		inFlight.Add(1)
		go func(req *proto.Request) {
			defer inFlight.Done()
			s.handleOne(handler, req)
		}(req)
	}
	inFlight.Wait()
}

func (s *ServerConnection) handleOne(handler Handler, req *proto.Request) {
	framesServed.Inc()
	resp := handler(req)
	resp.Batch = req.Batch
	resp.ID = req.ID

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := resp.WriteTo(s.conn); err != nil {
		s.logger.Printf("rpcconn: write to %s failed: %v", s.conn.RemoteAddr(), err)
	}
}
