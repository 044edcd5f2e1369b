/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv(EnvConfigPath, path)
	for _, env := range envByKey {
		t.Setenv(env, "")
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("cfg = %#v, want defaults", cfg)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Compiler.Annotate = true
	cfg.Store.Driver = DriverPostgres
	cfg.Store.DSN = "postgres://u@localhost/db"
	cfg.Telemetry.OptIn = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != cfg {
		t.Fatalf("got %#v, want %#v", got, cfg)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("store: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Fatalf("defaults should survive a bad file: %#v", cfg.Store)
	}
}

func TestEnvOverridesStore(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStoreDriver, "POSTGRES")
	t.Setenv(EnvPGDSN, "postgres://x")
	t.Setenv(EnvKeepLast, "7")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Store.DSN != "postgres://x" || cfg.Store.KeepLast != 7 {
		t.Fatalf("store overrides not applied: %#v", cfg.Store)
	}
	if env, ok := EnvOverrideFor("store.dsn"); !ok || env != EnvPGDSN {
		t.Fatalf("EnvOverrideFor(store.dsn) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("store.path"); ok {
		t.Fatalf("store.path is not overridden")
	}
}

func TestEnvOverridesTelemetryAndCompiler(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "yes")
	t.Setenv(EnvTelemetryURL, "https://example.test/events")
	t.Setenv(EnvAnnotate, "1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Telemetry.OptIn || cfg.Telemetry.EventsURL != "https://example.test/events" || !cfg.Compiler.Annotate {
		t.Fatalf("overrides not applied: %#v", cfg)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/sts.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/sts.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/sts.log")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/sts.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestTimeoutAndResolvedPath(t *testing.T) {
	if got := (TelemetryConfig{}).Timeout(); got != 5*time.Second {
		t.Fatalf("default timeout = %v", got)
	}
	if got := (TelemetryConfig{TimeoutMs: 250}).Timeout(); got != 250*time.Millisecond {
		t.Fatalf("timeout = %v", got)
	}
	p, err := StoreConfig{Path: "/x/builds.db"}.ResolvedPath()
	if err != nil || p != "/x/builds.db" {
		t.Fatalf("ResolvedPath = %q, %v", p, err)
	}
	t.Setenv("XDG_DATA_HOME", "/data")
	if p, err := (StoreConfig{}).ResolvedPath(); err == nil && filepath.Base(p) != "builds.db" {
		t.Fatalf("ResolvedPath default = %q", p)
	}
}
