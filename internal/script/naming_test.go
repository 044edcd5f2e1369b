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
	"testing"

	"github.com/stretchr/testify/assert"

	"storyscript/internal/document"
)

func TestToVarName(t *testing.T) {
	assert.Equal(t, "label_my_sceneX", ToLabelVar("My Scene!"))
	assert.Equal(t, "label_menu_3", ToLabelVar("menu_3"))
	assert.Equal(t, "chr_cafX_au_lait", ToVarName("Café  au lait", PrefixCharacter))
	assert.Equal(t, "name_a_b", ToVarName("a b", PrefixName))
	// Deterministic, and distinct titles may collide.
	assert.Equal(t, ToLabelVar("My Scene!"), ToLabelVar("My Scene!"))
	assert.Equal(t, ToLabelVar("My Scene!"), ToLabelVar("my scene?"))
}

func TestToCharacter(t *testing.T) {
	c := ToCharacter("Dr.Who")
	assert.Equal(t, Character{Tag: "drwho", CharVar: "chr_drwho", NameVar: "name_drwho", DisplayName: "Dr.Who"}, c)
	assert.Equal(t, "", ToBareword("!!"))
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, `"He said \"hi\" <b>"`, QuoteString(`He said "hi" <b>`))
	assert.Equal(t, `"a\\b"`, QuoteString(`a\b`))
	assert.Equal(t, `"tab\there"`, QuoteString("tab\there"))
}

func TestNormalize(t *testing.T) {
	line, ok := Normalize(document.Paragraph{Runs: []string{"  Alice: ", "Hi\tthere  "}})
	assert.True(t, ok)
	assert.Equal(t, Line{Text: "Alice: Hi there"}, line)

	line, ok = Normalize(document.Item(1, "deep"))
	assert.True(t, ok)
	assert.Equal(t, Line{Text: "deep", Level: 2, IsBullet: true}, line)

	line, ok = Normalize(document.Heading(2, " Intro "))
	assert.True(t, ok)
	assert.Equal(t, 2, line.HeadingLevel)

	_, ok = Normalize(document.Text(" \t "))
	assert.False(t, ok)
}
