/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package document

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ParseMarkdown converts a Markdown outline into a Document.
//
//   - "# Title" and "## Title" become HEADING_1 / HEADING_2 paragraphs.
//   - List items become bullet paragraphs; nesting level is the list depth minus one.
//   - Every source line of a paragraph is its own Document paragraph, matching the
//     one-statement-per-line convention of outlines written in a word processor.
//
// Code blocks, block quotes and thematic breaks are ignored.
func ParseMarkdown(src []byte) (Document, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	doc := Document{Paragraphs: []Paragraph{}}
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.Join(inlineLines(node, src), " ")
			doc.Paragraphs = append(doc.Paragraphs, Paragraph{
				Runs:       []string{title},
				NamedStyle: fmt.Sprintf("HEADING_%d", node.Level),
			})
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			lines := inlineLines(node, src)
			var bullet *Bullet
			if item, ok := node.Parent().(*ast.ListItem); ok && item.FirstChild() == node {
				bullet = &Bullet{NestingLevel: listDepth(item) - 1}
			}
			for i, l := range lines {
				p := Paragraph{Runs: []string{l}, NamedStyle: "NORMAL_TEXT"}
				if i == 0 {
					p.Bullet = bullet
				}
				doc.Paragraphs = append(doc.Paragraphs, p)
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.Blockquote, *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("walk markdown: %w", err)
	}
	return doc, nil
}

func listDepth(n ast.Node) int {
	depth := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.List); ok {
			depth++
		}
	}
	return depth
}

// inlineLines flattens the inline content of a block, splitting at line breaks.
func inlineLines(block ast.Node, src []byte) []string {
	var lines []string
	var cur strings.Builder
	_ = ast.Walk(block, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n == block {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			cur.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				lines = append(lines, cur.String())
				cur.Reset()
			}
		case *ast.String:
			cur.Write(t.Value)
		case *ast.AutoLink:
			cur.Write(t.URL(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
