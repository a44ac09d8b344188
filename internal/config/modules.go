package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 2000
)

// ModuleConfig configures one pipeline stage.
type ModuleConfig struct {
	Name            string   `yaml:"name,omitempty" json:"name"`
	Model           string   `yaml:"model,omitempty" json:"model"`
	PromptTemplate  string   `yaml:"prompt_template" json:"prompt_template"`
	Temperature     *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens       int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	JSONMode        bool     `yaml:"json_mode,omitempty" json:"json_mode"`
	ReasoningEffort string   `yaml:"reasoning_effort,omitempty" json:"reasoning_effort,omitempty"`
}

func (m ModuleConfig) EffectiveTemperature() float64 {
	if m.Temperature == nil {
		return DefaultTemperature
	}
	return *m.Temperature
}

func (m ModuleConfig) EffectiveMaxTokens() int {
	if m.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return m.MaxTokens
}

// ModulePatch is a partial update; nil fields are left alone.
type ModulePatch struct {
	Name            *string  `json:"name,omitempty"`
	Model           *string  `json:"model,omitempty"`
	PromptTemplate  *string  `json:"prompt_template,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxTokens       *int     `json:"max_tokens,omitempty"`
	JSONMode        *bool    `json:"json_mode,omitempty"`
	ReasoningEffort *string  `json:"reasoning_effort,omitempty"`
}

func (p ModulePatch) apply(m ModuleConfig) ModuleConfig {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Model != nil {
		m.Model = *p.Model
	}
	if p.PromptTemplate != nil {
		m.PromptTemplate = *p.PromptTemplate
	}
	if p.Temperature != nil {
		t := *p.Temperature
		m.Temperature = &t
	}
	if p.MaxTokens != nil {
		m.MaxTokens = *p.MaxTokens
	}
	if p.JSONMode != nil {
		m.JSONMode = *p.JSONMode
	}
	if p.ReasoningEffort != nil {
		m.ReasoningEffort = *p.ReasoningEffort
	}
	return m
}

type modulesFile struct {
	Modules map[string]ModuleConfig `yaml:"modules"`
}

// ModuleStore holds the module configuration and persists updates back to
// its YAML file. Safe for concurrent use.
type ModuleStore struct {
	path    string
	mu      sync.RWMutex
	modules map[string]ModuleConfig
}

// LoadModules reads the modules file. A missing file yields an empty store.
func LoadModules(path string) (*ModuleStore, error) {
	store := &ModuleStore{path: path, modules: make(map[string]ModuleConfig)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to read modules file: %w", err)
	}

	var f modulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse modules file %s: %w", path, err)
	}
	for name, m := range f.Modules {
		store.modules[name] = m
	}
	return store, nil
}

// NewModuleStore builds a store from modules. Updates are kept in memory only
// when path is empty.
func NewModuleStore(path string, modules map[string]ModuleConfig) *ModuleStore {
	store := &ModuleStore{path: path, modules: make(map[string]ModuleConfig, len(modules))}
	for name, m := range modules {
		store.modules[name] = m
	}
	return store
}

func (s *ModuleStore) Get(name string) (ModuleConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[name]
	return m, ok
}

// All returns a copy of every module.
func (s *ModuleStore) All() map[string]ModuleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ModuleConfig, len(s.modules))
	for name, m := range s.modules {
		out[name] = m
	}
	return out
}

// Names returns module names in sorted order.
func (s *ModuleStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.modules))
	for name := range s.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing reports which of the required modules are absent or have no template.
func (s *ModuleStore) Missing(required []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []string
	for _, name := range required {
		m, ok := s.modules[name]
		if !ok || strings.TrimSpace(m.PromptTemplate) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Update merges patch into the named module (creating it if needed) and saves.
func (s *ModuleStore) Update(name string, patch ModulePatch) (ModuleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := patch.apply(s.modules[name])
	s.modules[name] = updated
	if err := s.saveLocked(); err != nil {
		return ModuleConfig{}, err
	}
	return updated, nil
}

func (s *ModuleStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(modulesFile{Modules: s.modules})
	if err != nil {
		return fmt.Errorf("failed to marshal modules: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create modules directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write modules file: %w", err)
	}
	return nil
}

// DisplayName is the configured name, or the module key title-cased
// ("stage_design" → "Stage Design").
func DisplayName(key string, m ModuleConfig) string {
	if m.Name != "" {
		return m.Name
	}
	// Casers carry state, so one is built per call.
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}
