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
	"runtime"
)

func putInt32(buf []byte, v int32) {
	binary.BigEndian.PutUint32(buf, uint32(v))
}

func getInt32(buf []byte) int32 {
	return int32(binary.BigEndian.Uint32(buf))
}

// maxWorkers mirrors sysconf(_SC_NPROCESSORS_ONLN) as the cap on the
// number of worker processes the master spawns.
func maxWorkers() int {
	return runtime.NumCPU()
}
