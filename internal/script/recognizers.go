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
	"regexp"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// LineContext is everything a recognizer may look at.
type LineContext struct {
	Line         string
	Level        int
	IsBullet     bool
	HeadingLevel int
	Index        int
}

// Recognizer claims lines of one statement kind.
//
// Recognize returns (nil, nil) when the line is not of its kind, a statement when
// it is, or a *ParseError when the line has the kind's shape but is malformed.
// A *ParseError ends classification of that line; any other error is fatal.
type Recognizer interface {
	Name() string
	Recognize(lc LineContext) (Statement, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc struct {
	name string
	fn   func(LineContext) (Statement, error)
}

// NewRecognizer wraps fn under name.
func NewRecognizer(name string, fn func(LineContext) (Statement, error)) RecognizerFunc {
	return RecognizerFunc{name: name, fn: fn}
}

func (r RecognizerFunc) Name() string { return r.name }

func (r RecognizerFunc) Recognize(lc LineContext) (Statement, error) { return r.fn(lc) }

// DefaultRecognizers returns the recognizers in priority order. The order is part
// of the grammar: earlier entries shadow later ones on ambiguous lines, e.g. a
// comment "[a: b]" is never a say statement and "Branch: x" is never dialogue.
func DefaultRecognizers() []Recognizer {
	return []Recognizer{
		NewRecognizer("comment", recognizeComment),
		NewRecognizer("branch-item", recognizeBranchItem),
		NewRecognizer("timeline-label", recognizeTimelineLabel),
		NewRecognizer("timelines-start", recognizeTimelinesStart),
		NewRecognizer("scene", recognizeScene),
		NewRecognizer("input", recognizeInput),
		NewRecognizer("numeric-assignment", recognizeNumericAssignment),
		NewRecognizer("jump", recognizeJump),
		NewRecognizer("repeat-branch", recognizeRepeatBranch),
		NewRecognizer("branch-start", recognizeBranchStart),
		NewRecognizer("show", recognizeShow),
		NewRecognizer("say", recognizeSay),
	}
}

// SupportedLocations are the screen positions accepted by "show ... at".
var SupportedLocations = []string{"center", "left", "right"}

var showKeywords = []string{"at", "with"}

var (
	reScene      = regexp.MustCompile(`(?i)^scene(\s|$)`)
	reInput      = regexp.MustCompile(`^\$(\w+) = input (.+)$`)
	reAssignment = regexp.MustCompile(`^\$(\w+)([-+])?=(.+)$`)
	reDecimal    = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)
	reWord       = regexp.MustCompile(`^\w+$`)
	reJump       = regexp.MustCompile(`(?i)^jump(\s|$)`)
	reBranch     = regexp.MustCompile(`(?i)^Branch\s*:`)
	reSay        = regexp.MustCompile(`.+:.+`)
	reAlias      = regexp.MustCompile(`\((.+?)\)`)
	reAction     = regexp.MustCompile(`\[(.+?)\]|\{(.+?)\}`)
	reSpeakerMod = regexp.MustCompile(`\(.+?\)|\[.+?\]|\{.+?\}`)
)

func recognizeComment(lc LineContext) (Statement, error) {
	if !strings.HasPrefix(lc.Line, "[") {
		return nil, nil
	}
	return &Comment{Text: lc.Line}, nil
}

// Odd bullet depths are menu options; even depths are the body of the option above.
func recognizeBranchItem(lc LineContext) (Statement, error) {
	if !lc.IsBullet || lc.Level%2 == 0 {
		return nil, nil
	}
	return &BranchItem{Option: lc.Line}, nil
}

func recognizeTimelineLabel(lc LineContext) (Statement, error) {
	if lc.HeadingLevel != 2 {
		return nil, nil
	}
	return &TimelineLabel{Title: lc.Line, Label: ToLabelVar(lc.Line)}, nil
}

func recognizeTimelinesStart(lc LineContext) (Statement, error) {
	if lc.HeadingLevel != 1 || lc.Line != TimelinesHeader {
		return nil, nil
	}
	return &Start{}, nil
}

func recognizeScene(lc LineContext) (Statement, error) {
	if !reScene.MatchString(lc.Line) {
		return nil, nil
	}
	tokens := barewords(lc.Line)
	if len(tokens) < 2 {
		return nil, parseErrorf("scene statement missing tag")
	}
	return &Scene{Tag: tokens[1], Attributes: tail(tokens, 2)}, nil
}

func recognizeInput(lc LineContext) (Statement, error) {
	m := reInput.FindStringSubmatch(lc.Line)
	if m == nil {
		return nil, nil
	}
	variable, prompt := m[1], strings.TrimSpace(m[2])
	if variable == "" {
		return nil, parseErrorf("no variable name found")
	}
	if !reWord.MatchString(variable) {
		return nil, parseErrorf("invalid variable name: %s", variable)
	}
	if prompt == "" {
		return nil, parseErrorf("no prompt found")
	}
	return &Input{Variable: variable, Prompt: prompt}, nil
}

func recognizeNumericAssignment(lc LineContext) (Statement, error) {
	if !strings.HasPrefix(lc.Line, "$") {
		return nil, nil
	}
	compact := strings.ReplaceAll(lc.Line, " ", "")
	m := reAssignment.FindStringSubmatch(compact)
	if m == nil {
		if strings.HasPrefix(compact, "$=") || compact == "$" {
			return nil, parseErrorf("no variable name found")
		}
		if strings.HasSuffix(compact, "=") {
			return nil, parseErrorf("no value found")
		}
		return nil, parseErrorf("malformed assignment, expected $variable = number")
	}
	variable, operator, value := m[1], m[2], m[3]
	if !reDecimal.MatchString(value) {
		return nil, parseErrorf("expected a numeric value in assignment, got %q", value)
	}
	return &NumericAssignment{Variable: variable, Operator: operator, Value: value}, nil
}

func recognizeJump(lc LineContext) (Statement, error) {
	if !reJump.MatchString(lc.Line) {
		return nil, nil
	}
	tokens := strings.Split(lc.Line, " ")
	destination := strings.Join(tokens[1:], " ")
	if destination == "" {
		return nil, parseErrorf("no jump destination specified")
	}
	return &Jump{Destination: destination}, nil
}

func recognizeRepeatBranch(lc LineContext) (Statement, error) {
	if strings.ToLower(lc.Line) != "repeat branch" {
		return nil, nil
	}
	return &RepeatBranch{Index: lc.Index}, nil
}

func recognizeBranchStart(lc LineContext) (Statement, error) {
	if !reBranch.MatchString(lc.Line) {
		return nil, nil
	}
	return &BranchStart{Label: ToLabelVar("menu_" + strconv.Itoa(lc.Index)), Index: lc.Index}, nil
}

// recognizeShow parses "show <tag> [attributes...] [at <location>] [with <transition>]".
// Keyword arguments may come in either order; a repeated keyword overrides the earlier one.
func recognizeShow(lc LineContext) (Statement, error) {
	tokens := strings.Split(strings.ToLower(lc.Line), " ")
	if tokens[0] != "show" {
		return nil, nil
	}
	if len(tokens) < 2 {
		return nil, parseErrorf("show statement missing tag")
	}
	st := &Show{Tag: tokens[1]}
	rest := tokens[2:]
	for len(rest) > 0 && !isShowKeyword(rest[0]) {
		st.Attributes = append(st.Attributes, rest[0])
		rest = rest[1:]
	}
	for len(rest) > 0 {
		keyword := rest[0]
		if !isShowKeyword(keyword) {
			return nil, parseErrorf("show statement has unknown keyword %s%s", keyword, suggest(keyword, showKeywords))
		}
		if len(rest) < 2 {
			return nil, parseErrorf("show statement has the %q keyword with no argument", keyword)
		}
		arg := rest[1]
		rest = rest[2:]
		switch keyword {
		case "at":
			st.At = arg
		case "with":
			st.With = arg
		}
	}
	if st.At != "" && !contains(SupportedLocations, st.At) {
		return nil, parseErrorf("show statement has invalid location specified: %s%s. Must be one of %s",
			st.At, suggest(st.At, SupportedLocations), strings.Join(SupportedLocations, ", "))
	}
	return st, nil
}

// recognizeSay parses "speaker [attributes...] [(alias)] [[action]]: text".
func recognizeSay(lc LineContext) (Statement, error) {
	if !reSay.MatchString(lc.Line) {
		return nil, nil
	}
	speakerSection, textSection, _ := strings.Cut(lc.Line, ":")
	speakerSection = strings.TrimSpace(speakerSection)
	textSection = strings.TrimSpace(textSection)
	if speakerSection == "" {
		return nil, parseErrorf("no speaker portion found")
	}
	if textSection == "" {
		return nil, parseErrorf("no text portion found")
	}

	st := &Say{Text: textSection}
	if m := reAlias.FindStringSubmatch(speakerSection); m != nil {
		st.Alias = m[1]
	}
	if m := reAction.FindStringSubmatch(speakerSection); m != nil {
		st.Action = m[1] + m[2]
	}
	remaining := strings.Fields(reSpeakerMod.ReplaceAllString(speakerSection, " "))
	tokens := barewords(strings.Join(remaining, " "))
	if len(tokens) > 0 {
		st.Tag = tokens[0]
		st.Attributes = tail(tokens, 1)
		c := ToCharacter(firstWordToken(remaining))
		st.Character = &c
	}
	return st, nil
}

// firstWordToken is the first raw token that survives bareword normalization.
func firstWordToken(tokens []string) string {
	for _, t := range tokens {
		if ToBareword(t) != "" {
			return t
		}
	}
	return ""
}

// tail returns tokens[n:], or nil when nothing follows.
func tail(tokens []string, n int) []string {
	if len(tokens) <= n {
		return nil
	}
	return tokens[n:]
}

func isShowKeyword(tok string) bool { return contains(showKeywords, tok) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// suggest returns " (did you mean x?)" for the closest candidate within two edits.
func suggest(word string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(word, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return ""
	}
	return " (did you mean " + best + "?)"
}
