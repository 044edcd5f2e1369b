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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed googledoc.schema.json
var googleDocSchemaJSON []byte

var (
	googleDocSchemaOnce sync.Once
	googleDocSchema     *gojsonschema.Schema
	googleDocSchemaErr  error
)

// ErrInvalidDocument is returned (wrapped) when a Google Docs export does not match the expected shape.
var ErrInvalidDocument = errors.New("invalid document")

// Wire shape of the Google Docs API v1 document resource, restricted to what we read.
type gdoc struct {
	Title string `json:"title"`
	Body  *struct {
		Content []struct {
			Paragraph *gdocParagraph `json:"paragraph"`
		} `json:"content"`
	} `json:"body"`
}

type gdocParagraph struct {
	Elements []struct {
		TextRun *struct {
			Content string `json:"content"`
		} `json:"textRun"`
	} `json:"elements"`
	ParagraphStyle *struct {
		NamedStyleType string `json:"namedStyleType"`
	} `json:"paragraphStyle"`
	Bullet *struct {
		NestingLevel int `json:"nestingLevel"`
	} `json:"bullet"`
}

func compiledGoogleDocSchema() (*gojsonschema.Schema, error) {
	googleDocSchemaOnce.Do(func() {
		googleDocSchema, googleDocSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(googleDocSchemaJSON))
	})
	return googleDocSchema, googleDocSchemaErr
}

// DecodeGoogleDoc validates a Google Docs API JSON export and converts its paragraphs.
// Tables, section breaks and other structural elements are skipped.
func DecodeGoogleDoc(data []byte) (Document, error) {
	schema, err := compiledGoogleDocSchema()
	if err != nil {
		return Document{}, fmt.Errorf("compile document schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	var raw gdoc
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc := Document{Title: raw.Title, Paragraphs: []Paragraph{}}
	if raw.Body == nil {
		return doc, nil
	}
	for _, el := range raw.Body.Content {
		if el.Paragraph == nil {
			continue
		}
		doc.Paragraphs = append(doc.Paragraphs, el.Paragraph.toParagraph())
	}
	return doc, nil
}

func (gp *gdocParagraph) toParagraph() Paragraph {
	p := Paragraph{Runs: make([]string, 0, len(gp.Elements))}
	for _, e := range gp.Elements {
		if e.TextRun == nil {
			continue
		}
		p.Runs = append(p.Runs, e.TextRun.Content)
	}
	if gp.ParagraphStyle != nil {
		p.NamedStyle = gp.ParagraphStyle.NamedStyleType
	}
	if gp.Bullet != nil {
		p.Bullet = &Bullet{NestingLevel: gp.Bullet.NestingLevel}
	}
	return p
}
