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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outline = `# Timelines

## Intro

show alice happy
Alice: Hi!
`

// sandbox points config, data and output locations at a temp dir.
func sandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STS_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("STS_STORE_DRIVER", "sqlite")
	t.Setenv("STS_STORE_PATH", filepath.Join(dir, "builds.db"))
	t.Setenv("STS_OUTPUT_DIR", dir)
	t.Setenv("STS_LOG_LEVEL", "error")
	t.Setenv("STS_LOG_FILE", "")
	t.Setenv("STS_TELEMETRY_OPT_IN", "0")
	return dir
}

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func runCLI(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestUsageErrors(t *testing.T) {
	sandbox(t)
	for _, args := range [][]string{
		nil,
		{"frobnicate"},
		{"check"},
		{"review", "a.md"},
		{"history", "story", "zero"},
	} {
		code, _, stderr := runCLI(args...)
		assert.Equal(t, exitUsage, code, "%v", args)
		assert.Contains(t, stderr, "Usage:", "%v", args)
	}
}

func TestVersion(t *testing.T) {
	sandbox(t)
	code, stdout, _ := runCLI("version")
	assert.Equal(t, exitOK, code)
	assert.NotEmpty(t, stdout)
}

func TestCheckReportsLineErrors(t *testing.T) {
	dir := sandbox(t)
	good := writeDoc(t, dir, "good.md", outline)
	bad := writeDoc(t, dir, "bad.md", "# Timelines\n\njust some words\n")

	code, stdout, _ := runCLI("check", good)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "ok: 4 statements, 1 characters, 1 timelines")

	code, _, stderr := runCLI("check", bad)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "bad.md:1: [unknown] statement type could not be determined\n    just some words")
	assert.Contains(t, stderr, "1 error(s)")
}

func TestCompileWritesScriptAndRecordsHistory(t *testing.T) {
	dir := sandbox(t)
	src := writeDoc(t, dir, "chapter.md", outline)

	code, stdout, stderr := runCLI("compile", src)
	require.Equal(t, exitOK, code, stderr)
	out := filepath.Join(dir, "chapter.rpy")
	assert.Contains(t, stdout, "wrote "+out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "label label_intro:\n    show alice happy\n    chr_alice \"Hi!\"\n")

	explicit := filepath.Join(dir, "custom.rpy")
	code, _, _ = runCLI("compile", src, explicit)
	require.Equal(t, exitOK, code)
	assert.FileExists(t, explicit)

	code, stdout, _ = runCLI("history", "chapter")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, 2, bytes.Count([]byte(stdout), []byte(" ok ")))

	code, stdout, _ = runCLI("history", "chapter", "1")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, 1, bytes.Count([]byte(stdout), []byte("\n")))

	code, stdout, _ = runCLI("history", "nothing")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "no builds recorded")
}

func TestCompileFailureWritesNothing(t *testing.T) {
	dir := sandbox(t)
	src := writeDoc(t, dir, "broken.md", "# Timelines\n\nrepeat branch\n")

	code, _, stderr := runCLI("compile", src)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "broken.md:")
	assert.NoFileExists(t, filepath.Join(dir, "broken.rpy"))

	missing := filepath.Join(dir, "missing.md")
	code, _, stderr = runCLI("compile", missing)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "Error:")
}

func TestHistoryDisabledStore(t *testing.T) {
	sandbox(t)
	t.Setenv("STS_STORE_DRIVER", "none")
	code, _, stderr := runCLI("history", "chapter")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "disabled")
}

func TestTags(t *testing.T) {
	dir := sandbox(t)
	src := writeDoc(t, dir, "tags.md", outline)
	code, stdout, _ := runCLI("tags", src)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "  chr_alice  \"Alice\"\n")
	assert.Contains(t, stdout, "  alice: happy\n")
	assert.Contains(t, stdout, "  label_intro  \"Intro\"\n")
}

func TestReviewWritesPDF(t *testing.T) {
	dir := sandbox(t)
	src := writeDoc(t, dir, "review.md", outline)
	out := filepath.Join(dir, "review.pdf")
	code, stdout, stderr := runCLI("review", src, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "(0 errors)")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
