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
	"fmt"
	"net"

	"github.com/cis5512/tupled/internal/wire"
	"github.com/cis5512/tupled/tuplespace"
	"github.com/cis5512/tupled/tuplespace/proto"
)

// consumeTuple tries to hand t directly to pending requests rather than
// storing it, mirroring consumeTuple in the source: matching requests are
// taken from the queue in FIFO order; each READ is satisfied with its own
// delivered copy of t (a READ never claims it, so the search continues),
// and the first GET claims t destructively and ends the search without
// storing it, so matching READs queued behind that GET stay pending.
// consumeTuple reports whether t was claimed by a GET (in which case
// the caller must not also Store.Put it), and whether that GET's origin
// already held a retained delivery — the caller reports this as an
// overwrite the same way Store.Put does for its own replace case.
func (s *Server) consumeTuple(t *tuplespace.Tuple) (consumed, existed bool) {
	for {
		req, ok := s.Queue.PopFirstMatching(t.Name)
		if !ok {
			return false, false
		}

		s.deliver(req, t)

		if req.Kind == tuplespace.KindGet {
			existed = s.Retained.Record(req.Origin.Host, req.Origin.ProcID, *t)
			return true, existed
		}
		// KindRead: this request is satisfied, but t remains available for
		// the next matching request (another READ, or the eventual Store
		// caller) — so keep looping rather than returning.
	}
}

// deliver opens an outbound connection to req.Origin and writes t's
// metadata and payload as an unsolicited delayed reply, matching
// sendTuple. A failure here is not retried or reported anywhere — a
// known deficiency inherited from the source (see Design Notes): the
// tuple is simply lost rather than being restored to the store or queue.
func (s *Server) deliver(req *tuplespace.PendingRequest, t *tuplespace.Tuple) {
	addr := fmt.Sprintf("%s:%d", hostToIP(req.Origin.Host), req.Origin.Port)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		s.debugLog("delayed delivery dial to %s failed, dropping tuple %q: %v", addr, t.Name, err)
		return
	}
	defer conn.Close()

	hdr := proto.GetTupleHeader{
		Name:     proto.PutNameBytes(t.Name),
		Length:   uint32(len(t.Payload)),
		Priority: t.Priority,
	}
	if err := wire.WriteStruct(conn, hdr); err != nil {
		s.debugLog("delayed delivery header to %s failed, dropping tuple %q: %v", addr, t.Name, err)
		return
	}
	if err := wire.WriteFull(conn, t.Payload); err != nil {
		s.debugLog("delayed delivery payload to %s failed, dropping tuple %q: %v", addr, t.Name, err)
	}
}

func hostToIP(host uint32) net.IP {
	return net.IPv4(byte(host>>24), byte(host>>16), byte(host>>8), byte(host))
}
