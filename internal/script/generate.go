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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GenerateOptions tweaks code generation.
type GenerateOptions struct {
	// Annotate precedes each statement with a comment holding its line info.
	Annotate bool
}

type emitContext struct {
	statements     []Statement
	timelineLabels []string
	characters     []Character
	firstTimeline  string
	branchIndex    map[int]int
	branchLabels   map[int]string
}

// Generate renders a parsed script as Ren'Py source: numeric variable defaults,
// a blank line, character definitions, a blank line, then the statement body.
//
// Callers should check ps.Errors first. Generation can still fail on a clean
// parse, with a *GenerateError, when a "repeat branch" has no menu to return to.
func Generate(ps *ParsedScript, opts GenerateOptions) (string, error) {
	if ps == nil {
		return "", fmt.Errorf("generate: nil script")
	}
	characters := ps.Characters()
	charDefs := make([]string, 0, len(characters))
	for _, c := range characters {
		charDefs = append(charDefs, defineCharacter(c))
	}
	var numberDefs []string
	for _, v := range ps.NumericVariables() {
		numberDefs = append(numberDefs, fmt.Sprintf("default %s = 0", v))
	}

	ctx := emitContext{
		statements:     ps.Statements(),
		timelineLabels: ps.TimelineLabels(),
		characters:     characters,
		branchIndex:    ps.BranchIndex,
		branchLabels:   map[int]string{},
	}
	if len(ctx.timelineLabels) > 0 {
		ctx.firstTimeline = ctx.timelineLabels[0]
	}
	for _, st := range ctx.statements {
		if b, ok := st.(*BranchStart); ok {
			ctx.branchLabels[b.Index] = b.Label
		}
	}

	var body []string
	for i := range ps.Body {
		e := &ps.Body[i]
		indent := ""
		if !e.Statement.TopLevel() {
			indent = strings.Repeat(Indent, e.LineInfo.Level+1)
		}
		if opts.Annotate {
			info, _ := json.Marshal(e.LineInfo)
			body = append(body, indent+"# "+string(info))
		}
		code, err := emit(e.Statement, ctx)
		if err != nil {
			var ge *GenerateError
			if errors.As(err, &ge) {
				return "", &GenerateError{Message: ge.Message, LineInfo: &e.LineInfo}
			}
			return "", err
		}
		for _, l := range strings.Split(code, "\n") {
			body = append(body, indent+l)
		}
	}

	out := strings.Join([]string{
		strings.Join(numberDefs, "\n"),
		strings.Join(charDefs, "\n"),
		strings.Join(body, "\n"),
	}, "\n\n")
	return out + "\n", nil
}

func defineCharacter(c Character) string {
	return fmt.Sprintf("define %s = Character(%s, image=%s)\ndefault %s = %s",
		c.CharVar, QuoteString("["+c.NameVar+"]"), QuoteString(c.Tag),
		c.NameVar, QuoteString(c.DisplayName))
}

// emit renders one statement. Every Statement implementation must have a case.
func emit(st Statement, ctx emitContext) (string, error) {
	switch s := st.(type) {
	case *Comment:
		return "# " + s.Text, nil
	case *BranchItem:
		return QuoteString(s.Option) + ":", nil
	case *TimelineLabel:
		return "label " + s.Label + ":", nil
	case *Start:
		body := "pass"
		if ctx.firstTimeline != "" {
			body = "jump " + ctx.firstTimeline
		}
		return "label start:\n" + Indent + body, nil
	case *Scene:
		return joinWords("scene", s.Tag, s.Attributes), nil
	case *Input:
		return fmt.Sprintf("$%s = renpy.input(%s).strip()", s.Variable, QuoteString(s.Prompt)), nil
	case *NumericAssignment:
		return fmt.Sprintf("$%s %s= %s", s.Variable, s.Operator, s.Value), nil
	case *Jump:
		return "jump " + ToLabelVar(s.Destination), nil
	case *RepeatBranch:
		target, ok := ctx.branchIndex[s.Index]
		if !ok {
			return "", &GenerateError{Message: "no previous branch found"}
		}
		return "jump " + ctx.branchLabels[target], nil
	case *BranchStart:
		return strings.Join([]string{
			"$options = []",
			"menu " + s.Label + ":",
			Indent + "set options",
		}, "\n"), nil
	case *Show:
		code := joinWords("show", s.Tag, s.Attributes)
		if s.At != "" {
			code += " at " + s.At
		}
		if s.With != "" {
			code += " with " + s.With
		}
		return code, nil
	case *Say:
		return emitSay(s), nil
	}
	return "", fmt.Errorf("emit: unsupported statement kind %q", st.Kind())
}

// emitSay sets the display-name override before the line and restores the
// character's declared name after it, so an override affects one line only.
func emitSay(s *Say) string {
	override := s.Override()
	switch {
	case s.Character != nil:
		words := append([]string{s.Character.CharVar}, s.Attributes...)
		words = append(words, QuoteString(s.Text))
		line := strings.Join(words, " ")
		if override != "" {
			return fmt.Sprintf("$%s = %s\n%s\n$%s = %s",
				s.Character.NameVar, QuoteString(override), line,
				s.Character.NameVar, QuoteString(s.Character.DisplayName))
		}
		return line
	case override != "":
		return QuoteString(override) + " " + QuoteString(s.Text)
	default:
		return QuoteString(s.Text)
	}
}

func joinWords(command, tag string, attributes []string) string {
	words := append([]string{command, tag}, attributes...)
	return strings.Join(words, " ")
}
