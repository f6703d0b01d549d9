// Package speakers loads the speaker catalog: each speaker pairs a text
// prompt with a reference audio prompt used to condition the voice.
package speakers

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Speaker describes one catalog entry.
type Speaker struct {
	TextPrompt  string `yaml:"text_prompt"`
	AudioPrompt string `yaml:"audio_prompt"`
}

// Catalog maps speaker names to their prompts. Loaded once at startup and
// read-only afterwards.
type Catalog struct {
	Speakers map[string]Speaker `yaml:"speakers"`
}

// Load reads a catalog from disk and validates it.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read speaker catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse speaker catalog: %w", err)
	}
	if err := Validate(c); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate ensures the catalog is non-empty and every speaker has prompts.
func Validate(c Catalog) error {
	if len(c.Speakers) == 0 {
		return fmt.Errorf("speaker catalog has no speakers")
	}
	for name, sp := range c.Speakers {
		if sp.TextPrompt == "" {
			return fmt.Errorf("speaker %q: text_prompt is required", name)
		}
		if sp.AudioPrompt == "" {
			return fmt.Errorf("speaker %q: audio_prompt is required", name)
		}
	}
	return nil
}

// Get looks up a speaker by name.
func (c Catalog) Get(name string) (Speaker, bool) {
	sp, ok := c.Speakers[name]
	return sp, ok
}

// Names returns all speaker names, sorted for stable output.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Speakers))
	for name := range c.Speakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
