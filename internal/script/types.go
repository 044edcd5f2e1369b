/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"sort"
)

// LineInfo is the per-line diagnostic attached to every statement and error.
// Parser names the recognizer that accepted the line, or the one that rejected it.
type LineInfo struct {
	Index  int    `json:"index"`
	Level  int    `json:"level"`
	Line   string `json:"line"`
	Parser string `json:"parser"`
}

// Entry pairs a statement with the line it came from.
type Entry struct {
	Statement Statement `json:"-"`
	LineInfo  LineInfo  `json:"lineInfo"`
}

// AttributeSet is the deduplicated set of attributes used with a visual tag.
type AttributeSet map[string]struct{}

// Sorted returns the attributes in lexical order.
func (s AttributeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Metadata is derived from the statement list after parsing.
type Metadata struct {
	AttributesByTag map[string]AttributeSet
	// TimelineTitles maps a timeline label to the heading it was derived from.
	// Two headings that normalize to the same label collide silently; the last one wins.
	TimelineTitles map[string]string
}

// ParsedScript is the result of a parse: the statements in document order,
// every recoverable error, and derived metadata.
type ParsedScript struct {
	Body     []Entry
	Errors   []*ParseError
	Metadata Metadata
	// BranchIndex maps the statement index of each "repeat branch" to the index of
	// the nearest preceding branch start. Unresolved repeats have no entry.
	BranchIndex map[int]int
}

// HasErrors reports whether the parse produced any errors.
func (ps *ParsedScript) HasErrors() bool { return ps != nil && len(ps.Errors) > 0 }

// Statements returns the statements without their line info.
func (ps *ParsedScript) Statements() []Statement {
	out := make([]Statement, 0, len(ps.Body))
	for _, e := range ps.Body {
		out = append(out, e.Statement)
	}
	return out
}

// Characters returns the distinct speaking characters in order of first appearance.
func (ps *ParsedScript) Characters() []Character {
	seen := map[string]bool{}
	var out []Character
	for _, e := range ps.Body {
		say, ok := e.Statement.(*Say)
		if !ok || say.Character == nil || seen[say.Character.Tag] {
			continue
		}
		seen[say.Character.Tag] = true
		out = append(out, *say.Character)
	}
	return out
}

// NumericVariables returns the distinct assigned variable names in order of first appearance.
func (ps *ParsedScript) NumericVariables() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range ps.Body {
		a, ok := e.Statement.(*NumericAssignment)
		if !ok || seen[a.Variable] {
			continue
		}
		seen[a.Variable] = true
		out = append(out, a.Variable)
	}
	return out
}

// TimelineLabels returns the label of every timeline heading in document order.
func (ps *ParsedScript) TimelineLabels() []string {
	var out []string
	for _, e := range ps.Body {
		if tl, ok := e.Statement.(*TimelineLabel); ok {
			out = append(out, tl.Label)
		}
	}
	return out
}

// Character is a speaker derived from say statements.
// Identity is the normalized Tag; DisplayName keeps the spelling of the first line that used it.
type Character struct {
	Tag         string `json:"tag"`
	CharVar     string `json:"charVar"`
	NameVar     string `json:"nameVar"`
	DisplayName string `json:"displayName"`
}

// ParseError is an expected, per-line failure. Recognizers return it to claim a
// line they recognize but cannot accept; the parser records it and moves on.
type ParseError struct {
	Message  string
	LineInfo *LineInfo
}

func (e *ParseError) Error() string {
	if e.LineInfo == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s (line %q)", e.LineInfo.Parser, e.Message, e.LineInfo.Line)
}

func parseErrorf(format string, args ...any) error {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// GenerateError aborts code generation, e.g. for a "repeat branch" with no branch to return to.
type GenerateError struct {
	Message  string
	LineInfo *LineInfo
}

func (e *GenerateError) Error() string {
	if e.LineInfo == nil {
		return e.Message
	}
	return fmt.Sprintf("%s (line %q)", e.Message, e.LineInfo.Line)
}
