/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package compile runs the document-to-script pipeline and records every
// attempt in the build history.
package compile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storyscript/internal/document"
	applog "storyscript/internal/log"
	"storyscript/internal/script"
	"storyscript/internal/storage"
	"storyscript/internal/telemetry"
)

var (
	// ErrParseFailed is returned when the document has line errors. The Result still carries them.
	ErrParseFailed = errors.New("document has parse errors")
	// ErrGenerateFailed wraps a *script.GenerateError.
	ErrGenerateFailed = errors.New("script generation failed")
)

// Service compiles documents. Store and Telemetry are optional.
type Service struct {
	Store     storage.BuildStore
	Telemetry *telemetry.Client
	Parser    *script.Parser
	Annotate  bool
	// KeepLast prunes the stored history of a story after each build; 0 keeps everything.
	KeepLast int
}

// Result is the outcome of one compile attempt.
type Result struct {
	Story      string
	Script     *script.ParsedScript
	Code       string
	BuildID    uuid.UUID
	SourceHash string
	Duration   time.Duration
	// GenerateError is set when parsing succeeded but generation did not.
	GenerateError *script.GenerateError
}

// OK reports whether a script was produced.
func (r Result) OK() bool { return r.Code != "" }

// BuildErrors flattens the attempt's errors for storage.
func (r Result) BuildErrors() []storage.BuildError {
	var out []storage.BuildError
	if r.Script != nil {
		for _, e := range r.Script.Errors {
			out = append(out, toBuildError(e.Message, e.LineInfo))
		}
	}
	if r.GenerateError != nil {
		out = append(out, toBuildError(r.GenerateError.Message, r.GenerateError.LineInfo))
	}
	return out
}

func toBuildError(msg string, li *script.LineInfo) storage.BuildError {
	be := storage.BuildError{Index: -1, Message: msg}
	if li != nil {
		be.Index, be.Line, be.Parser = li.Index, li.Line, li.Parser
	}
	return be
}

// CompileFile loads the document at path and compiles it under the document's title.
func (s *Service) CompileFile(ctx context.Context, path string) (Result, error) {
	doc, err := document.Load(path)
	if err != nil {
		return Result{}, err
	}
	return s.Compile(ctx, doc.Title, doc)
}

// Compile parses doc, generates the script when the parse is clean, and records the attempt.
// The returned error wraps ErrParseFailed or ErrGenerateFailed for document problems;
// any other error is an internal failure and the Result is empty.
func (s *Service) Compile(ctx context.Context, story string, doc document.Document) (Result, error) {
	started := time.Now()
	ctx = applog.ContextWith(ctx, slog.String("story", story))
	l := applog.WithComponent("compile")

	res := Result{Story: story, BuildID: uuid.New(), SourceHash: SourceHash(doc)}
	ctx = applog.ContextWith(ctx, slog.String("build", res.BuildID.String()))

	parser := s.Parser
	if parser == nil {
		parser = script.NewParser()
	}
	ps, err := parser.Parse(doc)
	if err != nil {
		applog.WithOperation(l, "parse").ErrorContext(ctx, "parse aborted", slog.Any("err", err))
		return Result{}, fmt.Errorf("parse %s: %w", story, err)
	}
	res.Script = ps
	applog.WithOperation(l, "parse").InfoContext(ctx, "parsed",
		slog.Int("statements", len(ps.Body)), slog.Int("errors", len(ps.Errors)))

	var outcome error
	if ps.HasErrors() {
		outcome = fmt.Errorf("%w: %d error(s)", ErrParseFailed, len(ps.Errors))
	} else {
		code, err := script.Generate(ps, script.GenerateOptions{Annotate: s.Annotate})
		var ge *script.GenerateError
		switch {
		case errors.As(err, &ge):
			res.GenerateError = ge
			outcome = fmt.Errorf("%w: %w", ErrGenerateFailed, ge)
			applog.WithOperation(l, "generate").WarnContext(ctx, "generation failed", slog.String("reason", ge.Message))
		case err != nil:
			return Result{}, fmt.Errorf("generate %s: %w", story, err)
		default:
			res.Code = code
			applog.WithOperation(l, "generate").InfoContext(ctx, "generated",
				slog.Int("bytes", len(code)), slog.Int("characters", len(ps.Characters())))
		}
	}
	res.Duration = time.Since(started)

	s.record(ctx, l, res)
	s.Telemetry.Compile(telemetry.CompileStats{
		Statements: len(ps.Body),
		Errors:     len(res.BuildErrors()),
		Characters: len(ps.Characters()),
		OK:         res.OK(),
		Duration:   res.Duration,
	})
	return res, outcome
}

// record stores the attempt. History is auxiliary, so failures are logged and not returned.
func (s *Service) record(ctx context.Context, l *slog.Logger, res Result) {
	if s.Store == nil {
		return
	}
	l = applog.WithOperation(l, "store")
	b := storage.Build{
		ID:         res.BuildID,
		Story:      res.Story,
		SourceHash: res.SourceHash,
		Statements: len(res.Script.Body),
		Errors:     res.BuildErrors(),
		Output:     res.Code,
	}
	if err := s.Store.SaveBuild(ctx, b); err != nil {
		l.WarnContext(ctx, "save build failed", slog.Any("err", err))
		return
	}
	if s.KeepLast > 0 {
		n, err := s.Store.PruneBuilds(ctx, res.Story, s.KeepLast)
		if err != nil {
			l.WarnContext(ctx, "prune builds failed", slog.Any("err", err))
			return
		}
		if n > 0 {
			l.DebugContext(ctx, "pruned builds", slog.Int64("deleted", n))
		}
	}
	l.DebugContext(ctx, "build recorded")
}

// SourceHash fingerprints the document content that affects compilation.
func SourceHash(doc document.Document) string {
	h := sha256.New()
	// Encoding plain structs of strings and ints cannot fail.
	_ = json.NewEncoder(h).Encode(doc.Paragraphs)
	return hex.EncodeToString(h.Sum(nil))
}
