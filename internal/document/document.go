/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package document models the structured outline the script compiler consumes.
// A Document is an ordered list of paragraphs, each carrying text runs and the
// heading/bullet metadata of the editor it came from. Loaders turn Google Docs
// API exports and Markdown outlines into this shape.
package document

import (
	"regexp"
	"strconv"
	"strings"
)

// Document is an ordered sequence of paragraphs.
type Document struct {
	Title      string      `json:"title,omitempty"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is one block of the source document.
// NamedStyle follows the Google Docs convention: "NORMAL_TEXT", "HEADING_1", "HEADING_2", ...
type Paragraph struct {
	Runs       []string `json:"runs"`
	NamedStyle string   `json:"namedStyle,omitempty"`
	Bullet     *Bullet  `json:"bullet,omitempty"`
}

// Bullet marks a list paragraph. NestingLevel is zero-based.
type Bullet struct {
	NestingLevel int `json:"nestingLevel"`
}

var reHeadingStyle = regexp.MustCompile(`HEADING_(\d+)`)

// Text concatenates the trimmed text runs with single spaces.
func (p Paragraph) Text() string {
	parts := make([]string, 0, len(p.Runs))
	for _, r := range p.Runs {
		parts = append(parts, strings.TrimSpace(r))
	}
	return strings.Join(parts, " ")
}

// HeadingLevel returns the heading level and true, or 0 and false for non-heading paragraphs.
func (p Paragraph) HeadingLevel() (int, bool) {
	m := reHeadingStyle.FindStringSubmatch(p.NamedStyle)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsBullet reports whether the paragraph is a list item.
func (p Paragraph) IsBullet() bool { return p.Bullet != nil }

// BulletLevel is 0 for plain paragraphs and nesting level + 1 for list items.
func (p Paragraph) BulletLevel() int {
	if p.Bullet == nil {
		return 0
	}
	return p.Bullet.NestingLevel + 1
}

// Heading builds a heading paragraph.
func Heading(level int, text string) Paragraph {
	return Paragraph{Runs: []string{text}, NamedStyle: "HEADING_" + strconv.Itoa(level)}
}

// Text builds a normal paragraph.
func Text(text string) Paragraph {
	return Paragraph{Runs: []string{text}, NamedStyle: "NORMAL_TEXT"}
}

// Item builds a list paragraph at the given zero-based nesting level.
func Item(nesting int, text string) Paragraph {
	return Paragraph{Runs: []string{text}, NamedStyle: "NORMAL_TEXT", Bullet: &Bullet{NestingLevel: nesting}}
}
