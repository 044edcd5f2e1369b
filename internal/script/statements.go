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

// Kind discriminates statements.
type Kind string

const (
	KindComment           Kind = "comment"
	KindBranchItem        Kind = "branch-item"
	KindTimelineLabel     Kind = "timeline-label"
	KindStart             Kind = "start"
	KindScene             Kind = "scene"
	KindInput             Kind = "input"
	KindNumericAssignment Kind = "numeric-assignment"
	KindJump              Kind = "jump"
	KindRepeatBranch      Kind = "repeat-branch"
	KindBranchStart       Kind = "branch-start"
	KindShow              Kind = "show"
	KindSay               Kind = "say"
)

// Statement is one recognized outline line. The set of implementations is closed;
// emission lives in the generator (see emit).
type Statement interface {
	Kind() Kind
	// TopLevel statements are emitted at column 0 regardless of bullet depth.
	TopLevel() bool
	statement()
}

// Tagged is implemented by statements that reference an image tag with attributes.
type Tagged interface {
	Statement
	ImageTag() (tag string, attributes []string)
}

type nested struct{}

func (nested) TopLevel() bool { return false }
func (nested) statement()     {}

type topLevel struct{}

func (topLevel) TopLevel() bool { return true }
func (topLevel) statement()     {}

// Comment is an author note: any line starting with "[".
type Comment struct {
	nested
	Text string
}

// BranchItem is one option of the enclosing menu.
type BranchItem struct {
	nested
	Option string
}

// TimelineLabel is a heading-2 section.
type TimelineLabel struct {
	topLevel
	Title string
	Label string
}

// Start is the "Timelines" heading; it becomes the script's entry label.
type Start struct {
	topLevel
}

// Scene clears the stage and shows a background.
type Scene struct {
	nested
	Tag        string
	Attributes []string
}

// Input asks the player for a string.
type Input struct {
	nested
	Variable string
	Prompt   string
}

// NumericAssignment sets, increments ("+") or decrements ("-") a numeric variable.
// Value keeps the literal as written (spaces removed).
type NumericAssignment struct {
	nested
	Variable string
	Operator string
	Value    string
}

// Jump transfers control to a timeline by title.
type Jump struct {
	nested
	Destination string
}

// RepeatBranch returns to the nearest preceding menu.
type RepeatBranch struct {
	nested
	Index int
}

// BranchStart opens a menu. Index is the statement index the label is derived from.
type BranchStart struct {
	nested
	Label string
	Index int
}

// Show displays an image, optionally at a screen position and with a transition.
type Show struct {
	nested
	Tag        string
	Attributes []string
	At         string
	With       string
}

// Say is a line of dialogue. Character is nil for narration.
type Say struct {
	nested
	Tag        string
	Attributes []string
	Alias      string
	Action     string
	Text       string
	Character  *Character
}

func (*Comment) Kind() Kind           { return KindComment }
func (*BranchItem) Kind() Kind        { return KindBranchItem }
func (*TimelineLabel) Kind() Kind     { return KindTimelineLabel }
func (*Start) Kind() Kind             { return KindStart }
func (*Scene) Kind() Kind             { return KindScene }
func (*Input) Kind() Kind             { return KindInput }
func (*NumericAssignment) Kind() Kind { return KindNumericAssignment }
func (*Jump) Kind() Kind              { return KindJump }
func (*RepeatBranch) Kind() Kind      { return KindRepeatBranch }
func (*BranchStart) Kind() Kind       { return KindBranchStart }
func (*Show) Kind() Kind              { return KindShow }
func (*Say) Kind() Kind               { return KindSay }

func (s *Scene) ImageTag() (string, []string) { return s.Tag, s.Attributes }
func (s *Show) ImageTag() (string, []string)  { return s.Tag, s.Attributes }
func (s *Say) ImageTag() (string, []string)   { return s.Tag, s.Attributes }

// Override is the display name to use for this line, if any.
func (s *Say) Override() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Action
}
