/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package compile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyscript/internal/document"
	"storyscript/internal/script"
	"storyscript/internal/storage"
)

type memStore struct {
	mu     sync.Mutex
	builds []storage.Build
	pruned []int
	err    error
}

func (m *memStore) SaveBuild(_ context.Context, b storage.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.builds = append(m.builds, b)
	return nil
}

func (m *memStore) LatestBuild(context.Context, string) (storage.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.builds) == 0 {
		return storage.Build{}, storage.ErrNotFound
	}
	return m.builds[len(m.builds)-1], nil
}

func (m *memStore) ListBuilds(context.Context, string, int) ([]storage.Build, error) {
	return m.builds, nil
}

func (m *memStore) PruneBuilds(_ context.Context, _ string, keep int) (int64, error) {
	m.pruned = append(m.pruned, keep)
	return 0, nil
}

func (m *memStore) Close() error { return nil }

func intro() document.Document {
	return document.Document{Title: "demo", Paragraphs: []document.Paragraph{
		document.Heading(1, "Timelines"),
		document.Heading(2, "Intro"),
		document.Text("Alice: Hi!"),
	}}
}

func TestCompileCleanDocument(t *testing.T) {
	store := &memStore{}
	svc := &Service{Store: store, KeepLast: 5}
	res, err := svc.Compile(context.Background(), "demo", intro())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Contains(t, res.Code, "label label_intro:\n    chr_alice \"Hi!\"")
	assert.Len(t, res.SourceHash, 64)

	require.Len(t, store.builds, 1)
	b := store.builds[0]
	assert.Equal(t, res.BuildID, b.ID)
	assert.Equal(t, "demo", b.Story)
	assert.Equal(t, 3, b.Statements)
	assert.True(t, b.OK())
	assert.Equal(t, res.Code, b.Output)
	assert.Equal(t, []int{5}, store.pruned)
}

func TestCompileRecordsFailedParse(t *testing.T) {
	store := &memStore{}
	svc := &Service{Store: store}
	doc := intro()
	doc.Paragraphs = append(doc.Paragraphs, document.Text("show bg at offscreen"))

	res, err := svc.Compile(context.Background(), "demo", doc)
	require.ErrorIs(t, err, ErrParseFailed)
	assert.False(t, res.OK())
	require.NotNil(t, res.Script)
	require.Len(t, res.Script.Errors, 1)

	require.Len(t, store.builds, 1)
	b := store.builds[0]
	assert.False(t, b.OK())
	assert.Empty(t, b.Output)
	assert.Equal(t, []storage.BuildError{{
		Index: 3, Line: "show bg at offscreen", Parser: "show",
		Message: "show statement has invalid location specified: offscreen. Must be one of center, left, right",
	}}, b.Errors)
	assert.Empty(t, store.pruned)
}

func TestCompileGenerateFailure(t *testing.T) {
	doc := document.Document{Paragraphs: []document.Paragraph{
		document.Heading(1, "Timelines"),
		document.Text("repeat branch"),
	}}
	res, err := (&Service{}).Compile(context.Background(), "loop", doc)
	require.ErrorIs(t, err, ErrGenerateFailed)
	var ge *script.GenerateError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "no previous branch found", ge.Message)
	assert.Equal(t, []storage.BuildError{{Index: 1, Line: "repeat branch", Parser: "repeat-branch", Message: "no previous branch found"}}, res.BuildErrors())
}

func TestCompileMissingHeader(t *testing.T) {
	res, err := (&Service{}).Compile(context.Background(), "empty", document.Document{})
	require.ErrorIs(t, err, ErrParseFailed)
	assert.Equal(t, []storage.BuildError{{Index: -1, Message: "no content found in document"}}, res.BuildErrors())
}

func TestCompileStoreFailureDoesNotFailBuild(t *testing.T) {
	svc := &Service{Store: &memStore{err: errors.New("disk full")}}
	res, err := svc.Compile(context.Background(), "demo", intro())
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestCompileFatalRecognizer(t *testing.T) {
	boom := errors.New("boom")
	svc := &Service{Parser: script.NewParser(script.NewRecognizer("broken", func(script.LineContext) (script.Statement, error) {
		return nil, boom
	}))}
	_, err := svc.Compile(context.Background(), "demo", intro())
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrParseFailed)
}

func TestCompileFileWithSQLiteHistory(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(dir, "builds.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	src := filepath.Join(dir, "chapter1.md")
	require.NoError(t, os.WriteFile(src, []byte("# Timelines\n\n## Intro\n\nAlice: Hi!\n$score + = 2\n"), 0o644))

	svc := &Service{Store: store, Annotate: true}
	res, err := svc.CompileFile(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "chapter1", res.Story)
	assert.Contains(t, res.Code, "default score = 0")
	assert.Contains(t, res.Code, `"parser":"say"`)

	latest, err := store.LatestBuild(context.Background(), "chapter1")
	require.NoError(t, err)
	assert.Equal(t, res.BuildID, latest.ID)
	assert.Equal(t, res.SourceHash, latest.SourceHash)

	_, err = svc.CompileFile(context.Background(), filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestSourceHashTracksContent(t *testing.T) {
	a, b := intro(), intro()
	assert.Equal(t, SourceHash(a), SourceHash(b))
	b.Paragraphs[2] = document.Text("Alice: Bye!")
	assert.NotEqual(t, SourceHash(a), SourceHash(b))
}
