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
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Indent is one level of Ren'Py block indentation.
const Indent = "    "

// Placeholder replaces every character that cannot appear in an identifier.
const Placeholder = "X"

// Identifier role prefixes.
const (
	PrefixLabel     = "label"
	PrefixCharacter = "chr"
	PrefixName      = "name"
)

var (
	reWhitespaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)
	reNonIdentChar  = regexp.MustCompile(`[^a-z0-9_]`)
	reNonBareChar   = regexp.MustCompile(`[^a-z0-9_]+`)
)

// ToVarName derives an identifier from arbitrary text: lowercase, whitespace runs
// to "_", anything outside [a-z0-9_] to Placeholder, then "<prefix>_" in front.
// Distinct texts may map to the same identifier ("My Scene!" and "my scene?").
func ToVarName(text, prefix string) string {
	s := strings.ToLower(text)
	s = reWhitespaceRun.ReplaceAllString(s, "_")
	s = reNonIdentChar.ReplaceAllString(s, Placeholder)
	return prefix + "_" + s
}

// ToLabelVar is the label-role identifier for text.
func ToLabelVar(text string) string { return ToVarName(text, PrefixLabel) }

// ToBareword lowercases a token and drops everything outside [a-z0-9_].
func ToBareword(tok string) string {
	return reNonBareChar.ReplaceAllString(strings.ToLower(tok), "")
}

// barewords splits text on whitespace and keeps the non-empty barewords.
func barewords(text string) []string {
	var out []string
	for _, f := range strings.Fields(text) {
		if b := ToBareword(f); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ToCharacter builds the character identity for a speaker token.
func ToCharacter(speaker string) Character {
	tag := ToBareword(speaker)
	return Character{
		Tag:         tag,
		CharVar:     ToVarName(tag, PrefixCharacter),
		NameVar:     ToVarName(tag, PrefixName),
		DisplayName: speaker,
	}
}

// QuoteString renders text as a double-quoted string literal.
func QuoteString(text string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(text)
	return strings.TrimSuffix(buf.String(), "\n")
}
