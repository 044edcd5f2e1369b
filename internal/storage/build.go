/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storyscript/internal/config"
)

// ErrNotFound is returned when a story has no recorded builds.
var ErrNotFound = errors.New("build not found")

// BuildError is a stored parse or generation failure.
type BuildError struct {
	Index   int    `json:"index"`
	Line    string `json:"line,omitempty"`
	Parser  string `json:"parser,omitempty"`
	Message string `json:"message"`
}

// Build is one compile attempt.
type Build struct {
	ID         uuid.UUID
	Story      string
	SourceHash string
	CreatedAt  time.Time
	Statements int
	Errors     []BuildError
	// Output is the generated script; empty when the attempt failed.
	Output string
}

// OK reports whether the attempt produced a script.
func (b Build) OK() bool { return len(b.Errors) == 0 }

// BuildStore persists build history.
type BuildStore interface {
	SaveBuild(ctx context.Context, b Build) error
	// LatestBuild returns the newest build of story or ErrNotFound.
	LatestBuild(ctx context.Context, story string) (Build, error)
	// ListBuilds returns up to limit builds of story, newest first.
	ListBuilds(ctx context.Context, story string, limit int) ([]Build, error)
	// PruneBuilds keeps the newest keepLast builds of story and returns how many were deleted.
	PruneBuilds(ctx context.Context, story string, keepLast int) (int64, error)
	Close() error
}

// Open returns the store selected by cfg.Driver. The "none" driver yields a nil store.
func Open(ctx context.Context, cfg config.StoreConfig) (BuildStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", config.DriverSQLite:
		path, err := cfg.ResolvedPath()
		if err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, path)
	case config.DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("postgres store requires a DSN")
		}
		return OpenPostgres(ctx, cfg.DSN)
	case config.DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func prepare(b *Build) error {
	if strings.TrimSpace(b.Story) == "" {
		return errors.New("build story is required")
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return nil
}

func encodeErrors(errs []BuildError) (string, error) {
	if len(errs) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("encode build errors: %w", err)
	}
	return string(data), nil
}

func decodeErrors(data []byte) ([]BuildError, error) {
	var errs []BuildError
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &errs); err != nil {
		return nil, fmt.Errorf("decode build errors: %w", err)
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}
