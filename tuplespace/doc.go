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

// Package tuplespace implements the in-memory data structures behind a
// Linda-style tuple space: a named, priority-ordered Store of opaque
// byte-string tuples, a FIFO Queue of requests that are pending because no
// matching tuple existed yet, and the expression Matcher used by both to
// decide whether a request's pattern names a given tuple.
//
// Nothing in this package performs network I/O; see tuplespace/server for
// the TCP-facing dispatcher built on top of it.
package tuplespace
