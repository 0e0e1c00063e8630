// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server implements the TCP-facing half of the tuple space: an
// accept loop that dispatches each connection's single operation (PUT, GET,
// READ, or EXIT) against a tuplespace.Store and tuplespace.Queue, and the
// delayed-delivery dialer that satisfies a pending request once a matching
// tuple shows up.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"syscall"

	"golang.org/x/net/netutil"
	"golang.org/x/sys/unix"

	"github.com/cis5512/tupled/tuplespace"
	"github.com/cis5512/tupled/tuplespace/proto"
)

// maxConns bounds the number of simultaneously accepted connections, the
// way netutil.LimitListener is meant to: a crude backpressure valve rather
// than the single-thread-at-a-time discipline the original C server used,
// since §5 of the requirements explicitly allows a worker-per-connection
// model provided Store/Queue access stays serialized.
const maxConns = 256

// Server owns a tuple space (Store, Queue, RetainedDeliveries) and serves
// it over a single listening TCP port.
type Server struct {
	Store     *tuplespace.Store
	Queue     *tuplespace.Queue
	Retained  *tuplespace.RetainedDeliveries
	Logger    *log.Logger

	ln net.Listener
}

// New returns a Server with fresh, empty tuple-space state.
func New(logger *log.Logger) *Server {
	return &Server{
		Store:    tuplespace.NewStore(),
		Queue:    tuplespace.NewQueue(),
		Retained: tuplespace.NewRetainedDeliveries(),
		Logger:   logger,
	}
}

// Listen binds the server's TCP port, setting SO_REUSEADDR so a restarted
// server can rebind promptly after the old listener's sockets drain.
func (s *Server) Listen(ctx context.Context, port int) error {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %v", port, err)
	}

	s.ln = netutil.LimitListener(ln, maxConns)
	return nil
}

// Addr returns the server's bound address. Listen must have succeeded
// first.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until the listener is closed or an
// unrecoverable accept error occurs, dispatching each one in its own
// goroutine. It returns nil if the listener was closed deliberately (via
// Close, typically triggered by an EXIT op).
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			return fmt.Errorf("accept: %v", err)
		}

		go s.handleConn(conn)
	}
}

// Close stops accepting new connections. Connections already accepted are
// allowed to finish.
func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	var opCode uint16
	if err := readOp(conn, &opCode); err != nil {
		if err != io.EOF {
			s.debugLog("read op code: %v", err)
		}
		return
	}
	op := proto.Op(opCode)

	if op < proto.OpMin || op > proto.OpMax {
		// Includes proto.OpShell, which is out of scope: the original
		// dispatch table only covers [TSH_OP_MIN, TSH_OP_MAX], so an
		// out-of-range or shell op code is simply not actioned and the
		// connection is dropped, matching start()'s behavior.
		s.debugLog("op code %d out of dispatch range; dropping connection", op)
		return
	}

	switch op {
	case proto.OpPut:
		s.handlePut(conn)
	case proto.OpGet:
		s.handleGetOrRead(conn, tuplespace.KindGet)
	case proto.OpRead:
		s.handleGetOrRead(conn, tuplespace.KindRead)
	case proto.OpExit:
		s.handleExit(conn)
	}
}

func (s *Server) debugLog(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
