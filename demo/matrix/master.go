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
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/cis5512/tupled/tshclient"
)

// chunk tracks one unit of row-range work handed out to workers, mirroring
// work_tracker_t.
type chunk struct {
	id        int
	startRow  int
	numRows   int
	issueTime time.Time
	attempts  int
	completed bool
}

// MasterConfig configures a multiplication run. Clock defaults to
// timeutil.RealClock() when nil, letting tests substitute a
// timeutil.SimulatedClock to drive reissue/stall timing without sleeping.
type MasterConfig struct {
	ServerAddr     string
	Rows, Cols     int
	Granularity    int
	MatrixBPath    string
	ReissueEvery   time.Duration // default 5s, matches alarm(5)
	ReissueAfter   time.Duration // default 10s, matches check_and_reissue_work(port, 10)
	StallFraction  float64       // default 0.8
	StallAfter     time.Duration // default 5s
	HardStallAfter time.Duration // default 10s
	Clock          timeutil.Clock
	Logger         *log.Logger
	Rand           *rand.Rand
}

func (c *MasterConfig) setDefaults() {
	if c.ReissueEvery == 0 {
		c.ReissueEvery = 5 * time.Second
	}
	if c.ReissueAfter == 0 {
		c.ReissueAfter = 10 * time.Second
	}
	if c.StallFraction == 0 {
		c.StallFraction = 0.8
	}
	if c.StallAfter == 0 {
		c.StallAfter = 5 * time.Second
	}
	if c.HardStallAfter == 0 {
		c.HardStallAfter = 10 * time.Second
	}
	if c.Clock == nil {
		c.Clock = timeutil.RealClock()
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// MasterResult summarizes a completed run, for save_results_to_csv and for
// tests.
type MasterResult struct {
	C             *Matrix
	RowsCollected int
	TotalElapsed  time.Duration
	MultElapsed   time.Duration
	NumChunks     int
	NumWorkers    int
}

// RunSetup holds the state produced by PrepareRun that CollectResults later
// needs to finish a run. Its fields are unexported: callers only pass it
// from PrepareRun to CollectResults, and (via NumWorkers) size their own
// worker pool.
type RunSetup struct {
	chunks     []chunk
	numChunks  int
	numWorkers int
	start      time.Time
}

// NumWorkers reports how many worker processes the caller should spawn for
// this run, capped at maxWorkers() the same way the source caps
// num_workers at the machine's processor count.
func (s *RunSetup) NumWorkers() int {
	return s.numWorkers
}

// PrepareRun generates A and B, writes B to MatrixBPath, and publishes A's
// rows, the work chunks, and total_chunks through the tuple space — every
// setup step matrix_master.c's main() performs before its fork/execl loop.
// The caller must spawn workers only after PrepareRun returns, then pass
// the result to CollectResults; spawning any earlier risks workers reading
// MatrixBPath or claiming chunks before this step has published them.
func PrepareRun(cfg MasterConfig) (*RunSetup, error) {
	cfg.setDefaults()

	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("matrix: master connect: %v", err)
	}

	a := Generate(cfg.Rows, cfg.Cols, cfg.Rand)
	b := Generate(cfg.Rows, cfg.Cols, cfg.Rand)
	conn.Close()

	if err := WriteMatrixToFile(cfg.MatrixBPath, b); err != nil {
		return nil, err
	}

	start := cfg.Clock.Now()

	numChunks := (cfg.Rows + cfg.Granularity - 1) / cfg.Granularity
	chunks := make([]chunk, numChunks)

	if err := putAllRows(cfg, a); err != nil {
		return nil, err
	}
	if err := putAllChunks(cfg, chunks); err != nil {
		return nil, err
	}
	if err := putTotalChunks(cfg, numChunks); err != nil {
		return nil, err
	}

	numWorkers := numChunks
	if numWorkers > maxWorkers() {
		numWorkers = maxWorkers()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &RunSetup{chunks: chunks, numChunks: numChunks, numWorkers: numWorkers, start: start}, nil
}

// CollectResults waits for workers — already spawned by the caller against
// setup.NumWorkers() — to publish C's rows, reissuing and zero-filling as
// needed, and returns the assembled result. The pure-multiplication timer
// starts here, after setup, matching mult_start_time being taken only once
// every worker has been forked.
func CollectResults(cfg MasterConfig, setup *RunSetup) (*MasterResult, error) {
	cfg.setDefaults()

	result := &MasterResult{
		C:          NewMatrix(cfg.Rows, cfg.Cols),
		NumChunks:  setup.numChunks,
		NumWorkers: setup.numWorkers,
	}

	multStart := cfg.Clock.Now()
	rowsCollected, multEnd, err := cfg.collectRows(setup.chunks, result.C)
	if err != nil {
		return nil, err
	}
	if rowsCollected == cfg.Rows {
		result.MultElapsed = multEnd.Sub(multStart)
	}

	result.RowsCollected = rowsCollected
	result.TotalElapsed = cfg.Clock.Now().Sub(setup.start)
	return result, nil
}

// RunMaster runs PrepareRun and CollectResults back to back with no worker
// spawned in between. It exists for callers — tests, or any embedding that
// drives its own worker goroutines directly against the tuple space —
// that don't need the process-spawning seam cmd/matrix_master uses; that
// command calls PrepareRun and CollectResults itself so it can exec
// matrix_worker in between.
func RunMaster(cfg MasterConfig) (*MasterResult, error) {
	setup, err := PrepareRun(cfg)
	if err != nil {
		return nil, err
	}
	return CollectResults(cfg, setup)
}

func putAllRows(cfg MasterConfig, a *Matrix) error {
	for i := 0; i < cfg.Rows; i++ {
		conn, err := tshclient.Connect(cfg.ServerAddr)
		if err != nil {
			return fmt.Errorf("matrix: put A row %d: %v", i, err)
		}
		err = conn.Put(fmt.Sprintf("A_row_%d", i), 1, EncodeRow(a.Row(i)))
		conn.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func putAllChunks(cfg MasterConfig, chunks []chunk) error {
	chunkIdx := 0
	for i := 0; i < cfg.Rows; i += cfg.Granularity {
		numRows := cfg.Granularity
		if i+numRows > cfg.Rows {
			numRows = cfg.Rows - i
		}

		conn, err := tshclient.Connect(cfg.ServerAddr)
		if err != nil {
			return fmt.Errorf("matrix: put work chunk %d: %v", chunkIdx, err)
		}
		err = conn.Put(fmt.Sprintf("work_chunk_%d", chunkIdx), 1, encodeChunkData(i, numRows))
		conn.Close()
		if err != nil {
			return err
		}

		chunks[chunkIdx] = chunk{
			id:        chunkIdx,
			startRow:  i,
			numRows:   numRows,
			issueTime: cfg.Clock.Now(),
			attempts:  1,
		}
		chunkIdx++
	}
	return nil
}

func putTotalChunks(cfg MasterConfig, numChunks int) error {
	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("matrix: put total_chunks: %v", err)
	}
	defer conn.Close()
	return conn.Put("total_chunks", 1, encodeInt32(int32(numChunks)))
}

// collectRows polls for C_row_i results, reissuing timed-out chunks and
// zero-filling on a prolonged stall, exactly per the master's
// check_and_reissue_work / idle-time logic.
func (cfg MasterConfig) collectRows(chunks []chunk, c *Matrix) (rowsCollected int, multEnd time.Time, err error) {
	received := make([]bool, cfg.Rows)
	lastProgress := cfg.Clock.Now()
	lastReissueCheck := cfg.Clock.Now()

	for rowsCollected < cfg.Rows {
		hadProgress := false

		if cfg.Clock.Now().Sub(lastReissueCheck) >= cfg.ReissueEvery {
			cfg.checkAndReissueWork(chunks)
			lastReissueCheck = cfg.Clock.Now()
		}

		for i := 0; i < cfg.Rows && rowsCollected < cfg.Rows; i++ {
			if received[i] {
				continue
			}

			row, gotErr := cfg.tryGetResultRow(i)
			if gotErr != nil {
				continue
			}

			hadProgress = true
			copy(c.Row(i), row)
			received[i] = true
			rowsCollected++
			markChunkComplete(chunks, i)

			if rowsCollected == cfg.Rows {
				multEnd = cfg.Clock.Now()
			}
			if cfg.Logger != nil && (rowsCollected%10 == 0 || rowsCollected == cfg.Rows) {
				cfg.Logger.Printf("collected %d/%d result rows", rowsCollected, cfg.Rows)
			}

			lastProgress = cfg.Clock.Now()
		}

		if !hadProgress {
			idle := cfg.Clock.Now().Sub(lastProgress)
			stalled := (float64(rowsCollected) > float64(cfg.Rows)*cfg.StallFraction && idle > cfg.StallAfter) ||
				idle > cfg.HardStallAfter
			if stalled {
				if cfg.Logger != nil {
					cfg.Logger.Printf("no progress for %v with %d/%d rows, zero-filling remainder", idle, rowsCollected, cfg.Rows)
				}
				for i := 0; i < cfg.Rows; i++ {
					if !received[i] {
						received[i] = true
						rowsCollected++
					}
				}
				if multEnd.IsZero() {
					multEnd = cfg.Clock.Now()
				}
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
	}

	return rowsCollected, multEnd, nil
}

func (cfg MasterConfig) tryGetResultRow(row int) ([]float64, error) {
	conn, err := tshclient.Connect(cfg.ServerAddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	buf, err := conn.ReadAsync(fmt.Sprintf("C_row_%d", row))
	if err != nil {
		return nil, err
	}
	return DecodeRow(buf), nil
}

func (cfg MasterConfig) checkAndReissueWork(chunks []chunk) {
	now := cfg.Clock.Now()
	for i := range chunks {
		ch := &chunks[i]
		if ch.completed || ch.attempts == 0 {
			continue
		}
		if now.Sub(ch.issueTime) <= cfg.ReissueAfter {
			continue
		}

		if cfg.Logger != nil {
			cfg.Logger.Printf("chunk %d (rows %d-%d) timed out, reissuing (attempt %d)",
				ch.id, ch.startRow, ch.startRow+ch.numRows-1, ch.attempts+1)
		}

		conn, err := tshclient.Connect(cfg.ServerAddr)
		if err != nil {
			continue
		}
		priority := uint16(1 + ch.attempts)
		_ = conn.Put(fmt.Sprintf("work_chunk_%d", ch.id), priority, encodeChunkData(ch.startRow, ch.numRows))
		conn.Close()

		ch.issueTime = now
		ch.attempts++
	}
}

func markChunkComplete(chunks []chunk, row int) {
	for i := range chunks {
		if chunks[i].startRow <= row && row < chunks[i].startRow+chunks[i].numRows {
			chunks[i].completed = true
			return
		}
	}
}

// CleanupTupleSpace destructively drains every tuple name the demonstrator
// is known to use, including the legacy work_row_i pattern the original
// master also swept, matching cleanup_tuple_space.
func CleanupTupleSpace(addr string, rows, granularity int, logger *log.Logger) {
	if logger != nil {
		logger.Printf("starting tuple space cleanup")
	}
	if rows <= 0 {
		return
	}

	drain := func(name string) {
		conn, err := tshclient.Connect(addr)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.GetAsync(name)
	}

	for i := 0; i < rows; i++ {
		drain(fmt.Sprintf("A_row_%d", i))
	}
	for i := 0; i < rows; i++ {
		drain(fmt.Sprintf("B_row_%d", i))
	}
	for i := 0; i < rows; i++ {
		drain(fmt.Sprintf("C_row_%d", i))
	}
	for i := 0; i < rows; i++ {
		drain(fmt.Sprintf("work_row_%d", i)) // legacy-compat sweep
	}

	numChunks := (rows + granularity - 1) / granularity
	for i := 0; i < numChunks; i++ {
		drain(fmt.Sprintf("work_chunk_%d", i))
	}

	drain("all_work_complete")
	drain("total_chunks")

	if logger != nil {
		logger.Printf("tuple space cleanup complete")
	}
}

func encodeChunkData(startRow, numRows int) []byte {
	buf := make([]byte, 8)
	putInt32(buf[0:4], int32(startRow))
	putInt32(buf[4:8], int32(numRows))
	return buf
}

func decodeChunkData(buf []byte) (startRow, numRows int) {
	return int(getInt32(buf[0:4])), int(getInt32(buf[4:8]))
}

func encodeInt32(v int32) []byte {
	buf := make([]byte, 4)
	putInt32(buf, v)
	return buf
}
