/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"storyscript/internal/script"
)

// ReviewPDF renders an A4 review sheet for a compile attempt: a summary, the parse
// errors with their source lines, the character and image-tag inventory, the
// timelines, and the generated script. ps may carry errors; code may be empty.
//
// Core fonts are used, so text outside Windows-1252 is approximated.
func ReviewPDF(path, story string, ps *script.ParsedScript, code string) error {
	if ps == nil {
		return fmt.Errorf("review: nil script")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Story review: "+story, false)
	pdf.SetCreator("storyscript", false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s - page %d/{nb}", tr(story), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Story review: "+story), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	status := "compiled"
	if ps.HasErrors() {
		status = "failed"
	} else if code == "" {
		status = "not generated"
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Statements: %d   Errors: %d   Characters: %d   Status: %s",
		len(ps.Body), len(ps.Errors), len(ps.Characters()), status), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	if len(ps.Errors) > 0 {
		heading(pdf, "Errors")
		pdf.SetTextColor(160, 0, 0)
		for _, e := range ps.Errors {
			pdf.SetFont("Helvetica", "B", 9)
			if e.LineInfo == nil {
				pdf.MultiCell(0, 5, tr(e.Message), "", "L", false)
				continue
			}
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("Line %d [%s]: %s", e.LineInfo.Index, e.LineInfo.Parser, e.Message)), "", "L", false)
			pdf.SetFont("Courier", "", 9)
			pdf.MultiCell(0, 4.5, tr("    "+e.LineInfo.Line), "", "L", false)
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	if chars := ps.Characters(); len(chars) > 0 {
		heading(pdf, "Characters")
		rows := make([][2]string, 0, len(chars))
		for _, c := range chars {
			rows = append(rows, [2]string{c.CharVar, c.DisplayName})
		}
		table(pdf, tr, rows)
	}

	if len(ps.Metadata.AttributesByTag) > 0 {
		heading(pdf, "Image tags")
		tags := make([]string, 0, len(ps.Metadata.AttributesByTag))
		for tag := range ps.Metadata.AttributesByTag {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		rows := make([][2]string, 0, len(tags))
		for _, tag := range tags {
			rows = append(rows, [2]string{tag, strings.Join(ps.Metadata.AttributesByTag[tag].Sorted(), ", ")})
		}
		table(pdf, tr, rows)
	}

	if labels := ps.TimelineLabels(); len(labels) > 0 {
		heading(pdf, "Timelines")
		rows := make([][2]string, 0, len(labels))
		for _, l := range labels {
			rows = append(rows, [2]string{l, ps.Metadata.TimelineTitles[l]})
		}
		table(pdf, tr, rows)
	}

	if code != "" {
		heading(pdf, "Script")
		pdf.SetFont("Courier", "", 8)
		for i, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
			pdf.MultiCell(0, 3.8, tr(fmt.Sprintf("%4s  %s", strconv.Itoa(i+1), line)), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render review: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func heading(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 7, title, "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func table(pdf *gofpdf.Fpdf, tr func(string) string, rows [][2]string) {
	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		pdf.CellFormat(55, 5, tr(r[0]), "B", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(r[1]), "B", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
}
