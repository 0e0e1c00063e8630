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

package tuplespace

import "fmt"

// Status is the top-level outcome of a request, carried on the wire
// alongside an ErrorCode.
type Status int16

const (
	StatusSuccess Status = 0
	StatusFailure Status = 1
)

// ErrorCode refines a StatusFailure (or, for NoError/Overwrite, annotates a
// StatusSuccess PUT reply) the way the source's TSH_ER_* constants do.
type ErrorCode int16

const (
	ErrNone      ErrorCode = 0
	ErrNoMemory  ErrorCode = 1
	ErrNoTuple   ErrorCode = 2
	ErrOverwrite ErrorCode = 3
)

func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "NOERROR"
	case ErrNoMemory:
		return "NOMEM"
	case ErrNoTuple:
		return "NOTUPLE"
	case ErrOverwrite:
		return "OVERWRITE"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int16(e))
	}
}

// Error adapts an ErrorCode reported by the server into a Go error, for use
// by tshclient and by tests that assert on failure paths.
type Error struct {
	Code ErrorCode
}

func (e *Error) Error() string {
	return "tuplespace: " + e.Code.String()
}

// IsNoTuple reports whether err is a *Error carrying ErrNoTuple, the
// expected outcome of a read/get against a name with no current match.
func IsNoTuple(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == ErrNoTuple
}
