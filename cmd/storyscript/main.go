/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"storyscript/internal/compile"
	"storyscript/internal/config"
	"storyscript/internal/crash"
	"storyscript/internal/document"
	"storyscript/internal/export"
	applog "storyscript/internal/log"
	"storyscript/internal/script"
	"storyscript/internal/storage"
	"storyscript/internal/telemetry"
	"storyscript/internal/version"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "storyscript %s: compile story outlines into Ren'Py scripts\n\n", version.String())
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  storyscript check <doc>                 Parse <doc> and report line errors")
	_, _ = fmt.Fprintln(w, "  storyscript compile <doc> [out.rpy]     Compile <doc> and write the script")
	_, _ = fmt.Fprintln(w, "  storyscript review <doc> <out.pdf>      Render a PDF review sheet")
	_, _ = fmt.Fprintln(w, "  storyscript tags <doc>                  List characters, image tags and timelines")
	_, _ = fmt.Fprintln(w, "  storyscript history <story> [limit]     Show recorded builds of <story>")
	_, _ = fmt.Fprintln(w, "  storyscript version|-v|--version        Show version")
	_, _ = fmt.Fprintln(w, "\n<doc> is a Google Docs JSON export (.json) or a Markdown outline (.md).")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type app struct {
	cfg    config.AppConfig
	log    *slog.Logger
	tel    *telemetry.Client
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Writer:    stderr,
	})
	defer func() { _ = applog.Close() }()
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", cfgErr))
	}

	tel := telemetry.New(telemetry.FromConfig(cfg.Telemetry))
	telemetry.SetDefault(tel)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		tel.Flush(ctx)
		cancel()
		tel.Close()
	}()

	cc := &crash.Context{Telemetry: tel}
	if dir, err := config.DataDir(); err == nil {
		cc.ReportDir = filepath.Join(dir, "crash")
	}
	defer crash.Recover(cc)

	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	cc.Command = args[0]
	if len(args) > 1 {
		cc.Document = args[1]
	}
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))

	a := &app{cfg: cfg, log: l, tel: tel, stdout: stdout, stderr: stderr}
	ctx := context.Background()
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, version.String())
		return exitOK
	case "check":
		if len(args) != 2 {
			return a.usageError("check requires <doc>")
		}
		return a.check(args[1])
	case "compile":
		if len(args) < 2 || len(args) > 3 {
			return a.usageError("compile requires <doc> and an optional <out.rpy>")
		}
		out := ""
		if len(args) == 3 {
			out = args[2]
		}
		return a.compile(ctx, args[1], out)
	case "review":
		if len(args) != 3 {
			return a.usageError("review requires <doc> and <out.pdf>")
		}
		return a.review(args[1], args[2])
	case "tags":
		if len(args) != 2 {
			return a.usageError("tags requires <doc>")
		}
		return a.tags(args[1])
	case "history":
		if len(args) < 2 || len(args) > 3 {
			return a.usageError("history requires <story> and an optional <limit>")
		}
		limit := 20
		if len(args) == 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n <= 0 {
				return a.usageError("limit must be a positive number")
			}
			limit = n
		}
		return a.history(ctx, args[1], limit)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	}
	return a.usageError(fmt.Sprintf("unknown command %q", args[0]))
}

func (a *app) usageError(msg string) int {
	_, _ = fmt.Fprintln(a.stderr, "Error:", msg)
	usage(a.stderr)
	return exitUsage
}

func (a *app) fail(err error) int {
	a.log.Error("command failed", slog.Any("err", err))
	_, _ = fmt.Fprintln(a.stderr, "Error:", err)
	return exitFailed
}

func (a *app) parse(path string) (document.Document, *script.ParsedScript, error) {
	doc, err := document.Load(path)
	if err != nil {
		return document.Document{}, nil, err
	}
	ps, err := script.Parse(doc)
	if err != nil {
		return doc, nil, err
	}
	return doc, ps, nil
}

func (a *app) printErrors(path string, ps *script.ParsedScript) {
	name := filepath.Base(path)
	for _, e := range ps.Errors {
		if e.LineInfo == nil {
			_, _ = fmt.Fprintf(a.stderr, "%s: %s\n", name, e.Message)
			continue
		}
		_, _ = fmt.Fprintf(a.stderr, "%s:%d: [%s] %s\n    %s\n", name, e.LineInfo.Index, e.LineInfo.Parser, e.Message, e.LineInfo.Line)
	}
}

func (a *app) check(path string) int {
	_, ps, err := a.parse(path)
	if err != nil {
		return a.fail(err)
	}
	if ps.HasErrors() {
		a.printErrors(path, ps)
		_, _ = fmt.Fprintf(a.stderr, "%d error(s)\n", len(ps.Errors))
		return exitFailed
	}
	_, _ = fmt.Fprintf(a.stdout, "ok: %d statements, %d characters, %d timelines\n",
		len(ps.Body), len(ps.Characters()), len(ps.TimelineLabels()))
	return exitOK
}

func (a *app) openStore(ctx context.Context) storage.BuildStore {
	store, err := storage.Open(ctx, a.cfg.Store)
	if err != nil {
		a.log.Warn("build history unavailable", slog.String("driver", a.cfg.Store.Driver), slog.Any("err", err))
		return nil
	}
	return store
}

func (a *app) compile(ctx context.Context, path, out string) int {
	svc := &compile.Service{Telemetry: a.tel, Annotate: a.cfg.Compiler.Annotate, KeepLast: a.cfg.Store.KeepLast}
	if store := a.openStore(ctx); store != nil {
		svc.Store = store
		defer func() { _ = store.Close() }()
	}
	res, err := svc.CompileFile(ctx, path)
	switch {
	case errors.Is(err, compile.ErrParseFailed):
		a.printErrors(path, res.Script)
		_, _ = fmt.Fprintf(a.stderr, "%d error(s); no script written\n", len(res.Script.Errors))
		return exitFailed
	case errors.Is(err, compile.ErrGenerateFailed):
		ge := res.GenerateError
		if ge.LineInfo == nil {
			_, _ = fmt.Fprintf(a.stderr, "%s: %s\n", filepath.Base(path), ge.Message)
		} else {
			_, _ = fmt.Fprintf(a.stderr, "%s:%d: %s\n    %s\n", filepath.Base(path), ge.LineInfo.Index, ge.Message, ge.LineInfo.Line)
		}
		return exitFailed
	case err != nil:
		return a.fail(err)
	}
	if out == "" {
		out = export.ScriptPath(a.cfg.Compiler.OutputDir, res.Story)
	}
	if err := export.WriteScript(out, res.Code); err != nil {
		return a.fail(err)
	}
	_, _ = fmt.Fprintf(a.stdout, "wrote %s (%d statements, build %s)\n", out, len(res.Script.Body), res.BuildID)
	return exitOK
}

func (a *app) review(path, out string) int {
	doc, ps, err := a.parse(path)
	if err != nil {
		return a.fail(err)
	}
	code := ""
	if !ps.HasErrors() {
		code, err = script.Generate(ps, script.GenerateOptions{Annotate: a.cfg.Compiler.Annotate})
		var ge *script.GenerateError
		if err != nil && !errors.As(err, &ge) {
			return a.fail(err)
		}
	}
	if err := export.ReviewPDF(out, doc.Title, ps, code); err != nil {
		return a.fail(err)
	}
	_, _ = fmt.Fprintf(a.stdout, "wrote %s (%d errors)\n", out, len(ps.Errors))
	return exitOK
}

func (a *app) tags(path string) int {
	_, ps, err := a.parse(path)
	if err != nil {
		return a.fail(err)
	}
	w := a.stdout
	_, _ = fmt.Fprintln(w, "Characters:")
	for _, c := range ps.Characters() {
		_, _ = fmt.Fprintf(w, "  %s  %q\n", c.CharVar, c.DisplayName)
	}
	_, _ = fmt.Fprintln(w, "Image tags:")
	for _, tag := range slices.Sorted(maps.Keys(ps.Metadata.AttributesByTag)) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", tag, strings.Join(ps.Metadata.AttributesByTag[tag].Sorted(), " "))
	}
	_, _ = fmt.Fprintln(w, "Timelines:")
	for _, l := range ps.TimelineLabels() {
		_, _ = fmt.Fprintf(w, "  %s  %q\n", l, ps.Metadata.TimelineTitles[l])
	}
	if ps.HasErrors() {
		a.printErrors(path, ps)
		return exitFailed
	}
	return exitOK
}

func (a *app) history(ctx context.Context, story string, limit int) int {
	store, err := storage.Open(ctx, a.cfg.Store)
	if err != nil {
		return a.fail(err)
	}
	if store == nil {
		return a.fail(errors.New("build history is disabled (store driver \"none\")"))
	}
	defer func() { _ = store.Close() }()
	builds, err := store.ListBuilds(ctx, story, limit)
	if err != nil {
		return a.fail(err)
	}
	if len(builds) == 0 {
		_, _ = fmt.Fprintf(a.stdout, "no builds recorded for %q\n", story)
		return exitOK
	}
	for _, b := range builds {
		status := "ok"
		if !b.OK() {
			status = fmt.Sprintf("%d error(s)", len(b.Errors))
		}
		_, _ = fmt.Fprintf(a.stdout, "%s  %s  %-12s %4d statements  %s\n",
			b.CreatedAt.Local().Format(time.DateTime), b.ID, status, b.Statements, b.SourceHash[:min(12, len(b.SourceHash))])
	}
	return exitOK
}

