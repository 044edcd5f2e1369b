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
	"errors"
	"fmt"
	"strings"

	"storyscript/internal/document"
)

// TimelinesHeader is the heading-1 paragraph that starts the script. Everything before it is ignored.
const TimelinesHeader = "Timelines"

// Parser drives paragraphs through an ordered recognizer list.
// A Parser holds no state between calls and is safe for concurrent use.
type Parser struct {
	recognizers []Recognizer
}

// NewParser returns a parser using recognizers in the given order, or DefaultRecognizers when none are given.
func NewParser(recognizers ...Recognizer) *Parser {
	if len(recognizers) == 0 {
		recognizers = DefaultRecognizers()
	}
	return &Parser{recognizers: recognizers}
}

// Parse parses doc with the default recognizers.
func Parse(doc document.Document) (*ParsedScript, error) {
	return NewParser().Parse(doc)
}

// Parse converts the paragraphs from the "Timelines" heading onward into statements.
//
// Per-line failures never abort the parse: they are collected in ParsedScript.Errors
// and the next line is processed. The returned error is non-nil only when a
// recognizer fails with something other than a *ParseError.
func (p *Parser) Parse(doc document.Document) (*ParsedScript, error) {
	ps := &ParsedScript{
		Body:   []Entry{},
		Errors: []*ParseError{},
		Metadata: Metadata{
			AttributesByTag: map[string]AttributeSet{},
			TimelineTitles:  map[string]string{},
		},
		BranchIndex: map[int]int{},
	}

	start := findTimelinesHeader(doc.Paragraphs)
	if start < 0 {
		ps.Errors = append(ps.Errors, &ParseError{Message: "no content found in document"})
		return ps, nil
	}

	index := 0
	for _, para := range doc.Paragraphs[start:] {
		line, ok := Normalize(para)
		if !ok {
			continue
		}
		lc := LineContext{
			Line:         line.Text,
			Level:        line.Level,
			IsBullet:     line.IsBullet,
			HeadingLevel: line.HeadingLevel,
			Index:        index,
		}
		index++
		if err := p.classify(ps, lc); err != nil {
			return nil, err
		}
	}

	deriveMetadata(ps)
	ps.BranchIndex = indexBranches(ps.Body)
	return ps, nil
}

func (p *Parser) classify(ps *ParsedScript, lc LineContext) error {
	for _, r := range p.recognizers {
		info := LineInfo{Index: lc.Index, Level: lc.Level, Line: lc.Line, Parser: r.Name()}
		st, err := r.Recognize(lc)
		if err != nil {
			var pe *ParseError
			if !errors.As(err, &pe) {
				return fmt.Errorf("recognizer %s on %q: %w", r.Name(), lc.Line, err)
			}
			ps.Errors = append(ps.Errors, &ParseError{Message: pe.Message, LineInfo: &info})
			return nil
		}
		if st == nil {
			continue
		}
		ps.Body = append(ps.Body, Entry{Statement: st, LineInfo: info})
		return nil
	}
	ps.Errors = append(ps.Errors, &ParseError{
		Message:  "statement type could not be determined",
		LineInfo: &LineInfo{Index: lc.Index, Level: lc.Level, Line: lc.Line, Parser: "unknown"},
	})
	return nil
}

func findTimelinesHeader(paras []document.Paragraph) int {
	for i, para := range paras {
		line, ok := Normalize(para)
		if ok && line.HeadingLevel == 1 && strings.EqualFold(line.Text, TimelinesHeader) {
			return i
		}
	}
	return -1
}

func deriveMetadata(ps *ParsedScript) {
	for _, e := range ps.Body {
		if t, ok := e.Statement.(Tagged); ok {
			tag, attrs := t.ImageTag()
			if tag == "" {
				continue
			}
			set := ps.Metadata.AttributesByTag[tag]
			if set == nil {
				set = AttributeSet{}
				ps.Metadata.AttributesByTag[tag] = set
			}
			for _, a := range attrs {
				set[a] = struct{}{}
			}
		}
		if tl, ok := e.Statement.(*TimelineLabel); ok {
			ps.Metadata.TimelineTitles[tl.Label] = tl.Title
		}
	}
}

// indexBranches resolves every "repeat branch" to the nearest branch start with a lower index.
func indexBranches(body []Entry) map[int]int {
	out := map[int]int{}
	last := -1
	for _, e := range body {
		switch st := e.Statement.(type) {
		case *BranchStart:
			last = st.Index
		case *RepeatBranch:
			if last >= 0 && last < st.Index {
				out[st.Index] = last
			}
		}
	}
	return out
}
