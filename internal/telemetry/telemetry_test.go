/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storyscript/internal/config"
)

type recorder struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (rec *recorder) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.events = append(rec.events, b)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.crashes = append(rec.crashes, b)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_CompileEventAndUploadCrash(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	c.Compile(CompileStats{Statements: 12, Errors: 1, Characters: 2, Duration: 3 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)

	rec.mu.Lock()
	if len(rec.events) != 1 {
		rec.mu.Unlock()
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
	var m map[string]any
	if err := json.Unmarshal(rec.events[0], &m); err != nil {
		rec.mu.Unlock()
		t.Fatalf("bad event json: %v", err)
	}
	rec.mu.Unlock()
	if m["name"] != "compile" || m["statements"] != float64(12) || m["ok"] != false {
		t.Fatalf("unexpected event: %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts field")
	}

	if err := c.UploadCrash(ctx, []byte("STACKTRACE")); err != nil {
		t.Fatalf("upload crash: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.crashes) != 1 || string(rec.crashes[0]) != "STACKTRACE" {
		t.Fatalf("crash upload mismatch: %q", rec.crashes)
	}
}

func TestClient_DisabledAndEmptyEventName(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Event("ignored", nil)
	if err := c.UploadCrash(context.Background(), []byte("ignored")); err != nil {
		t.Fatalf("disabled upload should be a no-op: %v", err)
	}

	c2 := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c2.Close()
	c2.Event("", nil)
	c2.Flush(context.Background())
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}

	var nilClient *Client
	nilClient.Compile(CompileStats{})
	nilClient.Flush(context.Background())
	nilClient.Close()
}

func TestClient_SendErrors(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Flush(ctx)
	if err := c.UploadCrash(ctx, []byte("oops")); err == nil {
		t.Fatalf("expected upload error for unreachable endpoint")
	}
}

func TestFromEnvAndFromConfig(t *testing.T) {
	t.Setenv("STS_TELEMETRY_OPT_IN", "true")
	t.Setenv("STS_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("STS_CRASH_UPLOAD_URL", "")
	t.Setenv("STS_TELEMETRY_TIMEOUT_MS", "100")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}

	cfg = FromConfig(config.TelemetryConfig{OptIn: true, EventsURL: " http://x ", TimeoutMs: 200})
	if !cfg.OptIn || cfg.EventsURL != "http://x" || cfg.Timeout != 200*time.Millisecond {
		t.Fatalf("FromConfig mismatch: %+v", cfg)
	}

	c := New(cfg)
	SetDefault(c)
	if Default() != c || !Default().Enabled() {
		t.Fatalf("default client not installed")
	}
	SetDefault(nil)
	c.Close()
}
