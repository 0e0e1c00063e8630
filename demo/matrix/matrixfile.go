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

package matrix

import (
	"encoding/binary"
	"fmt"
	"os"

	fallocate "github.com/detailyang/go-fallocate"
)

// matrixFileHeaderSize is the size, in bytes, of the rows/cols header that
// precedes a matrix's raw payload in a matrix file (two little-endian
// int32s). The source wrote native-order C ints with no htonl conversion,
// on the grounds that this is a local scratch file rather than a wire
// message; this rewrite keeps that reasoning but fixes little-endian
// explicitly so the format doesn't depend on the host's arch.
const matrixFileHeaderSize = 8

// WriteMatrixToFile writes m to path in the matrix-file format: a
// rows/cols header followed by the row-major float64 payload, each value
// big-endian as EncodeRow encodes it. The
// file is fallocate-preallocated to its final size first, matching the
// source's intent of avoiding fragmentation for what can be a large
// dense write (m.Rows*m.Cols*8 bytes for B).
func WriteMatrixToFile(path string, m *Matrix) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("matrix: create %s: %v", path, err)
	}
	defer f.Close()

	total := int64(matrixFileHeaderSize + 8*len(m.Data))
	if err := fallocate.Fallocate(f, 0, total); err != nil {
		// Not fatal: some filesystems (notably overlayfs, tmpfs in some
		// configurations) don't support fallocate. Fall through and let
		// the writes below grow the file the ordinary way.
		_ = err
	}

	hdr := make([]byte, matrixFileHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(m.Rows))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(m.Cols))
	if _, err := f.Write(hdr); err != nil {
		return fmt.Errorf("matrix: write header to %s: %v", path, err)
	}

	if _, err := f.Write(EncodeRow(m.Data)); err != nil {
		return fmt.Errorf("matrix: write payload to %s: %v", path, err)
	}

	return nil
}

// ReadMatrixFromFile is the inverse of WriteMatrixToFile.
func ReadMatrixFromFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("matrix: open %s: %v", path, err)
	}
	defer f.Close()

	hdr := make([]byte, matrixFileHeaderSize)
	if _, err := readFull(f, hdr); err != nil {
		return nil, fmt.Errorf("matrix: read header from %s: %v", path, err)
	}
	rows := int(binary.LittleEndian.Uint32(hdr[0:4]))
	cols := int(binary.LittleEndian.Uint32(hdr[4:8]))

	payload := make([]byte, 8*rows*cols)
	if _, err := readFull(f, payload); err != nil {
		return nil, fmt.Errorf("matrix: read payload from %s: %v", path, err)
	}

	return &Matrix{Rows: rows, Cols: cols, Data: DecodeRow(payload)}, nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := f.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
