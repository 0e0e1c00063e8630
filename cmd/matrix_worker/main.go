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

// Command matrix_worker claims work_chunk tuples and publishes C_row_i
// results: matrix_worker <port> <max_rows> <matrix_b_file>.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/cis5512/tupled/demo/matrix"
)

var fEnableDebug = flag.Bool(
	"matrix.debug",
	false,
	"Write matrix worker debugging messages to stderr.")

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
	gLogger = log.New(writer, fmt.Sprintf("matrix_worker[%d]: ", os.Getpid()), flags)
}

func getLogger() *log.Logger {
	gLoggerOnce.Do(initLogger)
	return gLogger
}

func main() {
	flag.Parse()

	if flag.NArg() < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <port> <max_rows> <matrix_b_file>\n", os.Args[0])
		os.Exit(1)
	}

	port := flag.Arg(0)
	maxRows, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid max_rows %q: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}
	matrixBPath := flag.Arg(2)

	logger := getLogger()
	addr := "127.0.0.1:" + port

	result, err := matrix.RunWorker(matrix.WorkerConfig{
		ServerAddr:  addr,
		MaxRows:     maxRows,
		MatrixBPath: matrixBPath,
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "matrix worker failed: %v\n", err)
		os.Exit(1)
	}

	logger.Printf("worker exiting: %d chunks processed, %d rows produced",
		result.ChunksProcessed, result.RowsProduced)
}
