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

package server

import (
	"context"
	"io"
	"net"

	"github.com/jacobsa/reqtrace"

	"github.com/cis5512/tupled/internal/wire"
	"github.com/cis5512/tupled/tuplespace"
	"github.com/cis5512/tupled/tuplespace/proto"
)

func readOp(r io.Reader, opCode *uint16) error {
	var buf [2]byte
	if err := wire.ReadFull(r, buf[:]); err != nil {
		return err
	}
	*opCode = uint16(buf[0])<<8 | uint16(buf[1])
	return nil
}

func writeOp(w io.Writer, op proto.Op) error {
	buf := [2]byte{byte(op >> 8), byte(op)}
	return wire.WriteFull(w, buf[:])
}

// handlePut implements OpPut: read the fixed header and payload, then
// either hand the tuple straight to a matching pending request or store it,
// replying NOERROR/OVERWRITE to the originator as appropriate.
func (s *Server) handlePut(conn net.Conn) {
	var hdr proto.PutRequestHeader
	if err := wire.ReadStruct(conn, &hdr); err != nil {
		s.debugLog("read put header: %v", err)
		return
	}

	if s.Retained.Guarded(hdr.Host, int32(hdr.ProcID)) {
		// guardf: a fault-flagged client is silently ignored. Never
		// triggered in this repo; see tuplespace.RetainedDelivery.Fault.
		return
	}

	payload := make([]byte, hdr.Length)
	if err := wire.ReadFull(conn, payload); err != nil {
		s.debugLog("read put payload: %v", err)
		return
	}

	name := proto.GoString(hdr.Name)
	t := &tuplespace.Tuple{Name: name, Priority: hdr.Priority, Payload: payload}

	reply := proto.PutReply{Status: int16(tuplespace.StatusSuccess), Error: int16(tuplespace.ErrNone)}

	if consumed, existed := s.consumeTuple(t); !consumed {
		outcome := s.Store.Put(t)
		if outcome == tuplespace.Replaced {
			reply.Error = int16(tuplespace.ErrOverwrite)
		}
	} else if existed {
		reply.Error = int16(tuplespace.ErrOverwrite)
	}

	if err := wire.WriteStruct(conn, reply); err != nil {
		s.debugLog("write put reply: %v", err)
	}
}

// handleGetOrRead implements the shared body of OpGet and OpRead: look for
// an immediate match; on a hit, reply with the tuple (destroying it first
// for a Get); on a miss, reply NOTUPLE and, unless the request is async
// (RequestLength == -1), enqueue it for delayed delivery.
func (s *Server) handleGetOrRead(conn net.Conn, kind tuplespace.RequestKind) {
	var hdr proto.GetRequestHeader
	if err := wire.ReadStruct(conn, &hdr); err != nil {
		s.debugLog("read get/read header: %v", err)
		return
	}

	if s.Retained.Guarded(hdr.Host, hdr.ProcID) {
		return
	}

	expr := proto.GoString(hdr.Expr)

	var report reqtrace.ReportFunc
	_, report = reqtrace.Trace(context.Background(), kind.String()+" "+expr)
	defer report(nil)

	t, ok := s.Store.FindBest(expr)
	if !ok {
		reply := proto.GetImmediateReply{
			Status: int16(tuplespace.StatusFailure),
			Error:  int16(tuplespace.ErrNoTuple),
		}
		if err := wire.WriteStruct(conn, reply); err != nil {
			s.debugLog("write get/read miss reply: %v", err)
			return
		}

		if hdr.RequestLength != -1 {
			s.Queue.PushBack(&tuplespace.PendingRequest{
				Expression: expr,
				Kind:       kind,
				Origin: tuplespace.Origin{
					Host:    hdr.Host,
					Port:    hdr.Port,
					CIDPort: hdr.CIDPort,
					ProcID:  hdr.ProcID,
				},
			})
		}
		return
	}

	if kind == tuplespace.KindGet {
		s.Store.Remove(t.Name)
		s.Retained.Record(hdr.Host, hdr.ProcID, *t)
	}

	s.replyWithTuple(conn, t, hdr.RequestLength)
}

// replyWithTuple writes a SUCCESS GetImmediateReply followed by the tuple's
// metadata and payload, truncating the payload per the three-state
// requestLength convention described in proto.GetRequestHeader.
func (s *Server) replyWithTuple(w io.Writer, t *tuplespace.Tuple, requestLength int32) {
	reply := proto.GetImmediateReply{
		Status: int16(tuplespace.StatusSuccess),
		Error:  int16(tuplespace.ErrNone),
	}
	if err := wire.WriteStruct(w, reply); err != nil {
		s.debugLog("write get/read hit reply: %v", err)
		return
	}

	payload := t.Payload
	if requestLength > 0 && int(requestLength) < len(payload) {
		payload = payload[:requestLength]
	}

	tupleHdr := proto.GetTupleHeader{
		Name:     proto.PutNameBytes(t.Name),
		Length:   uint32(len(payload)),
		Priority: t.Priority,
	}
	if err := wire.WriteStruct(w, tupleHdr); err != nil {
		s.debugLog("write tuple header: %v", err)
		return
	}
	if err := wire.WriteFull(w, payload); err != nil {
		s.debugLog("write tuple payload: %v", err)
	}
}

// handleExit implements OpExit: acknowledge, drop all tuple-space state,
// and stop accepting new connections.
func (s *Server) handleExit(conn net.Conn) {
	reply := proto.PutReply{Status: int16(tuplespace.StatusSuccess), Error: int16(tuplespace.ErrNone)}
	if err := wire.WriteStruct(conn, reply); err != nil {
		s.debugLog("write exit reply: %v", err)
	}

	for _, req := range s.Queue.DrainAll() {
		_ = req // nothing to notify; the source frees pending requests unceremoniously too
	}
	for {
		t, ok := s.Store.FindBest("*")
		if !ok {
			break
		}
		s.Store.Remove(t.Name)
	}

	if err := s.Close(); err != nil {
		s.debugLog("close listener on exit: %v", err)
	}
}
