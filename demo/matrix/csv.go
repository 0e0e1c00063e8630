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
	"os"
)

// PerformanceRecord is one row of the master's performance log.
type PerformanceRecord struct {
	Size         int
	Granularity  int
	TotalSeconds float64
	MultSeconds  float64
}

// SaveResultsToCSV appends rec to path, writing the header line first if
// the file does not already exist, matching save_results_to_csv.
func SaveResultsToCSV(path string, rec PerformanceRecord) error {
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("matrix: open %s: %v", path, err)
	}
	defer f.Close()

	if needsHeader {
		if _, err := fmt.Fprintln(f, "size,granularity,total_seconds,mult_seconds"); err != nil {
			return fmt.Errorf("matrix: write header to %s: %v", path, err)
		}
	}

	_, err = fmt.Fprintf(f, "%d,%d,%.3f,%.6f\n", rec.Size, rec.Granularity, rec.TotalSeconds, rec.MultSeconds)
	if err != nil {
		return fmt.Errorf("matrix: append record to %s: %v", path, err)
	}
	return nil
}
