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

// Package wire provides the big-endian framing primitives shared by the
// tuplespace server and tshclient: reading and writing fixed-width structs
// and raw payload bytes over a net.Conn, with the "keep going until fully
// satisfied or the peer fails" discipline that Connection.readMessage and
// writeMessage use for FUSE kernel messages.
package wire

import (
	"encoding/binary"
	"io"
)

// ReadFull reads exactly len(buf) bytes from r, or returns the first error
// encountered (io.EOF if the peer closed before sending any byte,
// io.ErrUnexpectedEOF if it closed part-way through).
func ReadFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// WriteFull writes every byte of buf to w, looping past short writes the
// way writeMessage insists a single write call cannot be trusted to
// consume the whole buffer.
func WriteFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// ReadStruct decodes a fixed-width big-endian struct from r into v (a
// pointer to a struct of fixed-size fields, per encoding/binary's rules).
func ReadStruct(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.BigEndian, v)
}

// WriteStruct encodes v (a pointer to, or value of, a fixed-width struct)
// as big-endian bytes to w.
func WriteStruct(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.BigEndian, v)
}
