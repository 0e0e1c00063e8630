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
	"log"
	"os"
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/cis5512/tupled/tshclient"
)

// WorkerConfig configures one worker's run against a tuplespace server.
type WorkerConfig struct {
	ServerAddr  string
	MaxRows     int
	MatrixBPath string
	MaxLifetime time.Duration // default 30s
	MissSleep   time.Duration // default 5ms
	Clock       timeutil.Clock
	Logger      *log.Logger
}

func (c *WorkerConfig) setDefaults() {
	if c.MaxLifetime == 0 {
		c.MaxLifetime = 30 * time.Second
	}
	if c.MissSleep == 0 {
		c.MissSleep = 5 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = timeutil.RealClock()
	}
}

// WorkerResult summarizes one worker's contribution.
type WorkerResult struct {
	ChunksProcessed int
	RowsProduced    int
}

// RunWorker reads B from file, claims work_chunk tuples by destructive
// get, computes C rows not already present, and self-terminates per the
// consecutive-miss / lifetime / all_work_complete heuristics of the
// source's main loop.
func RunWorker(cfg WorkerConfig) (*WorkerResult, error) {
	cfg.setDefaults()
	startTime := cfg.Clock.Now()

	b, err := ReadMatrixFromFile(cfg.MatrixBPath)
	if err != nil {
		return nil, fmt.Errorf("matrix: worker read B: %v", err)
	}

	totalChunks := cfg.readTotalChunks()

	if cfg.allWorkComplete() {
		return &WorkerResult{}, nil
	}

	result := &WorkerResult{}
	consecutiveMisses := 0

	for {
		if cfg.Clock.Now().Sub(startTime) > cfg.MaxLifetime {
			cfg.reportProgress(result)
			return result, nil
		}

		claimed, startRow, numRows := cfg.claimChunk(totalChunks)
		if claimed {
			consecutiveMisses = 0
			result.ChunksProcessed++
			cfg.processChunk(startRow, numRows, b, cfg.MaxRows, result)
			continue
		}

		consecutiveMisses++

		if result.ChunksProcessed > 0 && result.ChunksProcessed >= totalChunks*6/10 && consecutiveMisses >= 3 {
			cfg.postAllWorkComplete()
			return result, nil
		}
		if consecutiveMisses >= 3 && result.ChunksProcessed > 0 {
			return result, nil
		}
		if consecutiveMisses >= 10 {
			return result, nil
		}
		if result.ChunksProcessed > 0 && consecutiveMisses >= 3 && result.ChunksProcessed >= totalChunks {
			return result, nil
		}

		if cfg.allWorkComplete() {
			return result, nil
		}

		time.Sleep(cfg.MissSleep)
	}
}

func (cfg WorkerConfig) readTotalChunks() int {
	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return defaultTotalChunks(cfg.MaxRows)
	}
	defer conn.Close()

	buf, err := conn.ReadAsync("total_chunks")
	if err != nil {
		return defaultTotalChunks(cfg.MaxRows)
	}
	return int(int32(binary.BigEndian.Uint32(buf)))
}

func defaultTotalChunks(maxRows int) int {
	return (maxRows + 4) / 5
}

func (cfg WorkerConfig) allWorkComplete() bool {
	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return false
	}
	defer conn.Close()

	_, err = conn.ReadAsync("all_work_complete")
	return err == nil
}

func (cfg WorkerConfig) postAllWorkComplete() {
	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.Put("all_work_complete", 1, encodeInt32(1))
}

func (cfg WorkerConfig) claimChunk(totalChunks int) (claimed bool, startRow, numRows int) {
	for chunkIdx := 0; chunkIdx < totalChunks; chunkIdx++ {
		conn, err := tshclient.Connect(cfg.ServerAddr)
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}

		buf, err := conn.GetAsync(fmt.Sprintf("work_chunk_%d", chunkIdx))
		conn.Close()
		if err != nil {
			continue
		}

		startRow, numRows = decodeChunkData(buf)
		return true, startRow, numRows
	}
	return false, 0, 0
}

// processChunk computes and publishes C_row_i for every row in
// [startRow, startRow+numRows) that doesn't already have a result,
// matching the source's idempotence re-check before each row.
func (cfg WorkerConfig) processChunk(startRow, numRows int, b *Matrix, maxRows int, result *WorkerResult) {
	if cfg.rowsAllPresent(startRow, numRows) {
		return
	}

	for offset := 0; offset < numRows; offset++ {
		row := startRow + offset

		if cfg.rowPresent(row) {
			continue
		}

		aRow, ok := cfg.readARow(row)
		if !ok {
			continue
		}

		c := MultiplyRow(aRow, b)

		conn, err := tshclient.Connect(cfg.ServerAddr)
		if err != nil {
			continue
		}
		err = conn.Put(fmt.Sprintf("C_row_%d", row), 1, EncodeRow(c))
		conn.Close()
		if err == nil {
			result.RowsProduced++
		}
	}
}

func (cfg WorkerConfig) rowsAllPresent(startRow, numRows int) bool {
	for offset := 0; offset < numRows; offset++ {
		if !cfg.rowPresent(startRow + offset) {
			return false
		}
	}
	return true
}

func (cfg WorkerConfig) rowPresent(row int) bool {
	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return false
	}
	defer conn.Close()

	_, err = conn.ReadAsync(fmt.Sprintf("C_row_%d", row))
	return err == nil
}

func (cfg WorkerConfig) readARow(row int) ([]float64, bool) {
	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return nil, false
	}
	defer conn.Close()

	buf, err := conn.ReadAsync(fmt.Sprintf("A_row_%d", row))
	if err != nil {
		return nil, false
	}
	return DecodeRow(buf), true
}

// reportProgress puts a worker_progress_<pid> tuple describing how much
// work this worker got through before its lifetime alarm fired, matching
// the source's best-effort progress report.
func (cfg WorkerConfig) reportProgress(result *WorkerResult) {
	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return
	}
	defer conn.Close()

	buf := make([]byte, 12)
	putInt32(buf[0:4], int32(os.Getpid()))
	putInt32(buf[4:8], int32(result.ChunksProcessed))
	putInt32(buf[8:12], int32(result.RowsProduced))

	name := fmt.Sprintf("worker_progress_%d", os.Getpid())
	_ = conn.Put(name, 1, buf)
}
