// Package policy holds the operator rules that sit on top of the disuse
// decision: which channels may never be archived, and the minimum archive threshold.
package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/channel-reaper/internal/models"
)

// DefaultMinArchiveDays is the smallest threshold an archive command accepts.
// A policy file may raise it but not lower it.
const DefaultMinArchiveDays = 30

// Policy is loaded from a YAML file such as:
//
//	protected_channels: ["#announcements", C0123456]
//	min_archive_days: 60
type Policy struct {
	ProtectedChannels []string `yaml:"protected_channels"`
	MinArchiveDays    int      `yaml:"min_archive_days"`

	protected map[string]struct{}
}

// Default returns the policy used when no file is configured.
func Default() *Policy {
	p := &Policy{MinArchiveDays: DefaultMinArchiveDays}
	p.index()
	return p
}

// Load reads the policy at path. An empty path yields Default().
// ${VAR} references in the file are expanded from the environment.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	p, err := LoadBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("policy: %s: %w", path, err)
	}
	return p, nil
}

// LoadBytes parses a YAML policy.
func LoadBytes(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &p); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if p.MinArchiveDays == 0 {
		p.MinArchiveDays = DefaultMinArchiveDays
	}
	if p.MinArchiveDays < DefaultMinArchiveDays {
		return nil, fmt.Errorf("min_archive_days must be at least %d, got %d", DefaultMinArchiveDays, p.MinArchiveDays)
	}
	p.index()
	return &p, nil
}

func (p *Policy) index() {
	p.protected = make(map[string]struct{}, len(p.ProtectedChannels))
	for _, c := range p.ProtectedChannels {
		if key := normalize(c); key != "" {
			p.protected[key] = struct{}{}
		}
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}

// IsProtected reports whether ch must never be archived. The workspace's
// general channel is always protected.
func (p *Policy) IsProtected(ch models.Channel) bool {
	if ch.IsGeneral {
		return true
	}
	if _, ok := p.protected[normalize(ch.ID)]; ok {
		return true
	}
	if ch.Name == "" {
		return false
	}
	_, ok := p.protected[normalize(ch.Name)]
	return ok
}

// Filter splits channels into archivable and protected, preserving order.
func (p *Policy) Filter(channels []models.Channel) (allowed, protected []models.Channel) {
	for _, ch := range channels {
		if p.IsProtected(ch) {
			protected = append(protected, ch)
			continue
		}
		allowed = append(allowed, ch)
	}
	return allowed, protected
}
