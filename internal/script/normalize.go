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
	"strings"

	"storyscript/internal/document"
)

// Line is the normalized form of a paragraph.
type Line struct {
	Text         string
	Level        int
	IsBullet     bool
	HeadingLevel int // 0 when the paragraph is not a heading
}

// Normalize collapses whitespace in the paragraph text and extracts its structure.
// It returns false for blank paragraphs, which are skipped entirely.
func Normalize(p document.Paragraph) (Line, bool) {
	text := NormalizeText(p.Text())
	if text == "" {
		return Line{}, false
	}
	hl, _ := p.HeadingLevel()
	return Line{
		Text:         text,
		Level:        p.BulletLevel(),
		IsBullet:     p.IsBullet(),
		HeadingLevel: hl,
	}, true
}

// NormalizeText collapses whitespace runs to single spaces and trims.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
