/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "storyscript/internal/log"
	"storyscript/internal/telemetry"
	"storyscript/internal/version"
)

// exitFn is replaced in tests so Recover does not end the process.
var exitFn = os.Exit

// stderr receives the user-facing crash notice.
var stderr io.Writer = os.Stderr

// Context describes what the CLI was doing when it crashed.
type Context struct {
	Command  string
	Document string
	// ReportDir receives crash-<stamp>.log; empty means os.TempDir().
	ReportDir string
	Telemetry *telemetry.Client
}

// Recover captures a panic, logs it with the stack trace, writes a crash
// report, uploads it when the user opted in, and exits with code 3.
//
// Usage: defer crash.Recover(&crash.Context{Command: "compile"})
func Recover(cc *Context) {
	r := recover()
	if r == nil {
		return
	}
	if cc == nil {
		cc = &Context{}
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("cmd", cc.Command), slog.String("stack", string(stack)))

	report := buildReport(cc, r, stack)
	path, err := writeReport(cc.ReportDir, report)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err), slog.String("path", path))
	}
	if cc.Telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := cc.Telemetry.UploadCrash(ctx, report); err != nil {
			l.Warn("crash upload failed", slog.Any("err", err))
		}
		cancel()
	}

	_, _ = fmt.Fprintf(stderr, "A fatal error occurred. A crash report was saved to: %s\n", path)
	_, _ = fmt.Fprintf(stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	_ = applog.Close()
	exitFn(3)
}

func buildReport(cc *Context, panicVal any, stack []byte) []byte {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Storyscript Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if cc.Command != "" {
		_, _ = fmt.Fprintf(&buf, "Command: %s\n", cc.Command)
	}
	if cc.Document != "" {
		// Only the base name; directory names can identify the user.
		_, _ = fmt.Fprintf(&buf, "Document: %s\n", filepath.Base(cc.Document))
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

func writeReport(dir string, report []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dir, err
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(report); err != nil {
		return path, err
	}
	return path, f.Sync()
}
