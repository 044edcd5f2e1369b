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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Compiler      CompilerConfig  `yaml:"compiler"`
	Store         StoreConfig     `yaml:"store"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

type CompilerConfig struct {
	// Annotate precedes every emitted statement with its source line info.
	Annotate bool `yaml:"annotate"`
	// OutputDir receives .rpy files when no explicit output path is given.
	OutputDir string `yaml:"output_dir"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | none
	// Path is the SQLite database file; empty means <DataDir>/builds.db.
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
	// KeepLast bounds the stored builds per story; 0 keeps everything.
	KeepLast int `yaml:"keep_last"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Compiler:      CompilerConfig{Annotate: false, OutputDir: "."},
		Store:         StoreConfig{Driver: DriverSQLite, KeepLast: 50},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Telemetry:     TelemetryConfig{OptIn: false, TimeoutMs: 5000},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath = "STS_CONFIG"

	EnvAnnotate  = "STS_ANNOTATE"
	EnvOutputDir = "STS_OUTPUT_DIR"

	EnvStoreDriver = "STS_STORE_DRIVER"
	EnvStorePath   = "STS_STORE_PATH"
	EnvPGDSN       = "STS_PG_DSN"
	EnvKeepLast    = "STS_KEEP_LAST"

	EnvLogLevel  = "STS_LOG_LEVEL"
	EnvLogFormat = "STS_LOG_FORMAT"
	EnvLogSource = "STS_LOG_SOURCE"
	EnvLogFile   = "STS_LOG_FILE"

	EnvTelemetryOptIn = "STS_TELEMETRY_OPT_IN"
	EnvTelemetryURL   = "STS_TELEMETRY_URL"
	EnvCrashUploadURL = "STS_CRASH_UPLOAD_URL"
)

func userDir(kind string) (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Storyscript")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Storyscript")
	default:
		if kind == "data" {
			if x := os.Getenv("XDG_DATA_HOME"); x != "" {
				return filepath.Join(x, "storyscript"), nil
			}
			base = filepath.Join(os.Getenv("HOME"), ".local", "share", "storyscript")
		} else {
			if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
				return filepath.Join(x, "storyscript"), nil
			}
			base = filepath.Join(os.Getenv("HOME"), ".config", "storyscript")
		}
	}
	if base == "" || base == "Storyscript" {
		return "", errors.New("cannot resolve user directory")
	}
	return base, nil
}

// ConfigPath returns the config file path: STS_CONFIG if set, else the per-user location.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := userDir("config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir is where the default build database and crash reports live.
func DataDir() (string, error) { return userDir("data") }

// Load reads the user config file (if present) over the defaults and applies env overrides.
// A missing file is not an error; a malformed one is.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		applyEnvOverrides(&cfg)
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes cfg as YAML to the config path.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from the file so user preferences persist
	dst.Compiler.Annotate = src.Compiler.Annotate
	if v := strings.TrimSpace(src.Compiler.OutputDir); v != "" {
		dst.Compiler.OutputDir = v
	}

	if v := strings.TrimSpace(src.Store.Driver); v != "" {
		dst.Store.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Store.Path); v != "" {
		dst.Store.Path = v
	}
	if v := strings.TrimSpace(src.Store.DSN); v != "" {
		dst.Store.DSN = v
	}
	if src.Store.KeepLast != 0 {
		dst.Store.KeepLast = src.Store.KeepLast
	}

	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}

	dst.Telemetry.OptIn = src.Telemetry.OptIn
	if v := strings.TrimSpace(src.Telemetry.EventsURL); v != "" {
		dst.Telemetry.EventsURL = v
	}
	if v := strings.TrimSpace(src.Telemetry.CrashURL); v != "" {
		dst.Telemetry.CrashURL = v
	}
	if src.Telemetry.TimeoutMs != 0 {
		dst.Telemetry.TimeoutMs = src.Telemetry.TimeoutMs
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAnnotate)); v != "" {
		cfg.Compiler.Annotate = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputDir)); v != "" {
		cfg.Compiler.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDriver)); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorePath)); v != "" {
		cfg.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvKeepLast)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Store.KeepLast = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.Telemetry.OptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryURL)); v != "" {
		cfg.Telemetry.EventsURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCrashUploadURL)); v != "" {
		cfg.Telemetry.CrashURL = v
	}
}

var envByKey = map[string]string{
	"compiler.annotate":    EnvAnnotate,
	"compiler.output_dir":  EnvOutputDir,
	"store.driver":         EnvStoreDriver,
	"store.path":           EnvStorePath,
	"store.dsn":            EnvPGDSN,
	"store.keep_last":      EnvKeepLast,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
	"telemetry.opt_in":     EnvTelemetryOptIn,
	"telemetry.events_url": EnvTelemetryURL,
	"telemetry.crash_url":  EnvCrashUploadURL,
}

// EnvOverrideFor returns the env var name if the dotted key is currently overridden.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envByKey[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the telemetry request timeout, falling back to the default.
func (t TelemetryConfig) Timeout() time.Duration {
	ms := t.TimeoutMs
	if ms <= 0 {
		ms = Defaults().Telemetry.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// ResolvedPath returns the SQLite file path, defaulting to <DataDir>/builds.db.
func (s StoreConfig) ResolvedPath() (string, error) {
	if p := strings.TrimSpace(s.Path); p != "" {
		return p, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "builds.db"), nil
}
