// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the run configuration of i18nagent.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/llm"
)

// DefaultFile is looked up in the working tree when no --config is given.
const DefaultFile = ".i18nagent.yaml"

// Config holds everything a run needs.
type Config struct {
	TargetLanguage string `yaml:"target_language"`
	SourceLanguage string `yaml:"source_language"`

	// Root is the working tree to transform.
	Root string `yaml:"root"`
	// TestMode restricts discovery to SandboxDir.
	TestMode   bool   `yaml:"test_mode"`
	SandboxDir string `yaml:"sandbox_dir"`

	Discovery DiscoveryConfig `yaml:"discovery"`
	// SkipPatterns are regular expressions of texts that are never extracted.
	SkipPatterns []string `yaml:"skip_patterns"`

	LocalesDir    string `yaml:"locales_dir"`
	BackupDir     string `yaml:"backup_dir"`
	KeepSnapshots int    `yaml:"keep_snapshots"`

	Loop        LoopConfig        `yaml:"loop"`
	Setup       SetupConfig       `yaml:"setup"`
	Integration IntegrationConfig `yaml:"integration"`
	SmokeTests  SmokeTestConfig   `yaml:"smoke_tests"`

	// Model configures the oracle. An empty type runs without one.
	Model     llm.ModelConfig `yaml:"model"`
	PromptDir string          `yaml:"prompt_dir"`

	MetricsFile string `yaml:"metrics_file"`
	LogLevel    string `yaml:"log_level"`
}

// DiscoveryConfig selects the source files of a run.
type DiscoveryConfig struct {
	IncludeDirs []string `yaml:"include_dirs"`
	Extensions  []string `yaml:"extensions"`
	// Exclude holds doublestar globs relative to the root.
	Exclude []string `yaml:"exclude"`
}

// LoopConfig bounds the orchestration loop.
type LoopConfig struct {
	MaxIterations  int           `yaml:"max_iterations"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
	Goal           string        `yaml:"goal"`
}

type SetupConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ConfigFile   string `yaml:"config_file"`
	ProviderFile string `yaml:"provider_file"`
}

type IntegrationConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppFile string `yaml:"app_file"`
}

// SmokeTestConfig lists commands run from the root; exit status 0 passes.
type SmokeTestConfig struct {
	Commands []string      `yaml:"commands"`
	Timeout  time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		TargetLanguage: "es",
		SourceLanguage: "en",
		Root:           ".",
		SandboxDir:     "test-i18n",
		Discovery: DiscoveryConfig{
			IncludeDirs: []string{"components", "pages", "src", "lib", "server"},
			Extensions:  []string{".js", ".jsx", ".ts", ".tsx"},
			Exclude: []string{
				"**/node_modules/**", "**/.next/**", "**/.git/**", "**/dist/**", "**/build/**",
				"**/*.test.*", "**/*.spec.*", "**/__tests__/**",
			},
		},
		SkipPatterns: []string{`^\s*$`, `^[A-Z_]+$`, `\$\{`, `\{\{`},
		LocalesDir:   "locales",
		BackupDir:    ".i18n-backups",
		// snapshots whose restore failed stay for `snapshots restore`
		KeepSnapshots: 5,
		Loop: LoopConfig{
			MaxIterations:  50,
			Timeout:        5 * time.Minute,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			RetryMaxDelay:  8 * time.Second,
		},
		Setup: SetupConfig{
			ConfigFile:   "lib/i18n.js",
			ProviderFile: "components/I18nProvider.jsx",
		},
		Integration: IntegrationConfig{AppFile: "pages/_app.jsx"},
		SmokeTests:  SmokeTestConfig{Timeout: 2 * time.Minute},
		Model: llm.ModelConfig{
			Timeout: 2 * time.Minute,
			Retries: 3,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error when path is the default file.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err) && !explicit:
	case err != nil:
		return nil, errors.Wrapf(err, "read config %s", path)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write config %s", path)
}

func (c *Config) applyEnvOverrides() {
	if lang := os.Getenv("I18N_TARGET_LANGUAGE"); lang != "" {
		c.TargetLanguage = lang
	}
	if t := os.Getenv("I18N_MODEL_TYPE"); t != "" {
		c.Model.APIType = llm.NewModelType(t)
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.Model.APIKey == "" {
		c.Model.APIKey = key
		if c.Model.APIType == llm.ModelTypeUnknown {
			c.Model.APIType = llm.ModelTypeClaude
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Model.APIKey == "" {
		c.Model.APIKey = key
		if c.Model.APIType == llm.ModelTypeUnknown {
			c.Model.APIType = llm.ModelTypeOpenAI
		}
	}
	if c.Model.APIType == llm.ModelTypeClaude && c.Model.ModelName == "" {
		c.Model.ModelName = "claude-sonnet-4-20250514"
	}
	if c.Model.APIType == llm.ModelTypeOpenAI && c.Model.ModelName == "" {
		c.Model.ModelName = "gpt-4o-mini"
	}
}

// OracleEnabled reports whether a model is configured.
func (c *Config) OracleEnabled() bool {
	return c.Model.APIType != llm.ModelTypeUnknown
}

// SearchDirs returns the directories discovery walks.
func (c *Config) SearchDirs() []string {
	if c.TestMode {
		return []string{c.SandboxDir}
	}
	return c.Discovery.IncludeDirs
}

// ExcludedDirs returns the directory names excluded anywhere in the tree,
// taken from exclude globs of the form **/name/**.
func (c *Config) ExcludedDirs() []string {
	var dirs []string
	for _, g := range c.Discovery.Exclude {
		name, ok := strings.CutPrefix(g, "**/")
		if !ok {
			continue
		}
		name, ok = strings.CutSuffix(name, "/**")
		if !ok || name == "" || strings.ContainsAny(name, "/*?[{") {
			continue
		}
		dirs = append(dirs, name)
	}
	return dirs
}

// Validate checks the configuration for a run.
func (c *Config) Validate() error {
	var errs []string
	if c.TargetLanguage == "" {
		errs = append(errs, "target_language is required")
	}
	if c.TargetLanguage != "" && strings.EqualFold(c.TargetLanguage, c.SourceLanguage) {
		errs = append(errs, "target_language must differ from source_language")
	}
	if c.Root == "" {
		errs = append(errs, "root is required")
	}
	if c.TestMode && c.SandboxDir == "" {
		errs = append(errs, "sandbox_dir is required in test mode")
	}
	if len(c.SearchDirs()) == 0 {
		errs = append(errs, "no directory to search")
	}
	if c.BackupDir == "" {
		errs = append(errs, "backup_dir is required")
	}
	if c.Loop.MaxIterations <= 0 {
		errs = append(errs, "loop.max_iterations must be positive")
	}
	if c.Loop.Timeout <= 0 {
		errs = append(errs, "loop.timeout must be positive")
	}
	if c.Loop.MaxRetries <= 0 {
		errs = append(errs, "loop.max_retries must be positive")
	}
	if c.Loop.RetryBaseDelay <= 0 || c.Loop.RetryMaxDelay < c.Loop.RetryBaseDelay {
		errs = append(errs, "loop retry delays must satisfy 0 < retry_base_delay <= retry_max_delay")
	}
	if c.OracleEnabled() && c.Model.APIType != llm.ModelTypeOllama && c.Model.APIKey == "" {
		errs = append(errs, "model.api_key is required for model type "+string(c.Model.APIType))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
