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

// Command matrix_master drives the matrix-multiplication demonstrator:
// matrix_master <port> [size] [granularity].
package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/cis5512/tupled/demo/matrix"
)

const defaultMatrixSize = 8192

var fEnableDebug = flag.Bool(
	"matrix.debug",
	false,
	"Write matrix demonstrator debugging messages to stderr.")

var gLogger *log.Logger
var gLoggerOnce sync.Once

func initLogger() {
	if !flag.Parsed() {
		panic("initLogger called before flags available.")
	}

	var writer io.Writer = ioutil.Discard
	if *fEnableDebug {
		writer = os.Stderr
	}

	const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	gLogger = log.New(writer, "matrix_master: ", flags)
}

func getLogger() *log.Logger {
	gLoggerOnce.Do(initLogger)
	return gLogger
}

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s <port> [size] [granularity]\n", os.Args[0])
		os.Exit(1)
	}

	port := flag.Arg(0)
	size := defaultMatrixSize
	granularity := 1

	if flag.NArg() >= 2 {
		v, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid size %q: %v\n", flag.Arg(1), err)
			os.Exit(1)
		}
		size = v
	}

	if flag.NArg() >= 3 {
		v, err := strconv.Atoi(flag.Arg(2))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid granularity %q: %v\n", flag.Arg(2), err)
			os.Exit(1)
		}
		if v <= 0 {
			fmt.Printf("Invalid granularity %d, using 1 instead\n", v)
			v = 1
		} else if v > size {
			fmt.Printf("Granularity %d exceeds matrix size, using %d instead\n", v, size)
			v = size
		}
		granularity = v
	}

	logger := getLogger()
	fmt.Printf("Starting matrix multiplication with size %dx%d, granularity %d\n", size, size, granularity)

	const matrixBPath = "matrix_b.dat"
	addr := "127.0.0.1:" + port

	cfg := matrix.MasterConfig{
		ServerAddr:  addr,
		Rows:        size,
		Cols:        size,
		Granularity: granularity,
		MatrixBPath: matrixBPath,
		Logger:      logger,
	}

	// Publish A, B, and the work chunks before spawning a single worker:
	// matrix_worker exits immediately if matrix_b.dat isn't there yet, so
	// workers must never start before this setup has completed.
	setup, err := matrix.PrepareRun(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "matrix master setup failed: %v\n", err)
		os.Exit(1)
	}

	workers := spawnWorkers(setup.NumWorkers(), port, size, matrixBPath, logger)

	result, err := matrix.CollectResults(cfg, setup)
	if err != nil {
		waitForWorkers(workers, logger)
		fmt.Fprintf(os.Stderr, "matrix master failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Matrix multiplication complete. Collected %d/%d rows.\n", result.RowsCollected, size)
	fmt.Printf("Total time: %.3f seconds\n", result.TotalElapsed.Seconds())
	fmt.Printf("Pure multiplication time: %.6f seconds\n", result.MultElapsed.Seconds())

	if err := matrix.SaveResultsToCSV("matrix_performance.csv", matrix.PerformanceRecord{
		Size:         size,
		Granularity:  granularity,
		TotalSeconds: result.TotalElapsed.Seconds(),
		MultSeconds:  result.MultElapsed.Seconds(),
	}); err != nil {
		logger.Printf("save results to csv: %v", err)
	}

	waitForWorkers(workers, logger)

	matrix.CleanupTupleSpace(addr, size, granularity, logger)
	os.Remove(matrixBPath)
}

func spawnWorkers(n int, port string, size int, matrixBPath string, logger *log.Logger) []*exec.Cmd {
	logger.Printf("spawning %d worker processes", n)
	cmds := make([]*exec.Cmd, 0, n)
	for i := 0; i < n; i++ {
		cmd := exec.Command("./matrix_worker", port, strconv.Itoa(size), matrixBPath)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			logger.Printf("spawn worker %d: %v", i, err)
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func waitForWorkers(cmds []*exec.Cmd, logger *log.Logger) {
	for _, cmd := range cmds {
		if err := cmd.Wait(); err != nil {
			logger.Printf("worker process exited with error: %v", err)
		}
	}
}
