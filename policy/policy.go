// Package policy holds the in-memory, optionally YAML-backed allow/block
// and redaction configuration the mediation proxy consults on every request.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Policy is the mutable configuration the proxy admits/denies/redacts
// requests against. Zero value is not directly useful — see Default.
type Policy struct {
	AllowDomains         []string `yaml:"allow_domains"`
	BlockDomains         []string `yaml:"block_domains"`
	SpendCapCents        *int64   `yaml:"spend_cap_cents,omitempty"`
	OutputRedactPatterns []string `yaml:"output_redact_patterns"`
	AutoSettle402        bool     `yaml:"auto_settle_402"`
}

// Default returns the hardened default policy: the major agent API hosts
// allowed, the cloud metadata address blocked, a 1000-cent spend cap,
// credential-shaped redaction patterns, and auto-settle off.
func Default() Policy {
	cap := int64(1000)
	return Policy{
		AllowDomains: []string{
			"api.openai.com",
			"api.anthropic.com",
			"api.x.ai",
			"generativelanguage.googleapis.com",
		},
		BlockDomains:  []string{"169.254.169.254"},
		SpendCapCents: &cap,
		OutputRedactPatterns: []string{
			"sk-[A-Za-z0-9]{20,}",
			"Bearer [A-Za-z0-9._-]+",
		},
		AutoSettle402: false,
	}
}

// Store guards a Policy behind a reader-writer lock, as the single shared
// policy singleton the proxy handler snapshots once per request.
type Store struct {
	path string

	mu sync.RWMutex
	p  Policy
}

// NewStore returns a Store holding the hardened default policy. If path is
// non-empty and an existing file is found, it is loaded over the default.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, p: Default()}
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns a copy of the current policy for lock-free use by the
// caller (the proxy handler takes one snapshot per request).
func (s *Store) Snapshot() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// Load reads and parses the YAML file at s.path, replacing the in-memory
// policy on success.
func (s *Store) Load() error {
	if s.path == "" {
		return fmt.Errorf("policy: no path configured")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
	return nil
}

// Save serializes the current policy to s.path as YAML.
func (s *Store) Save() error {
	if s.path == "" {
		return fmt.Errorf("policy: no path configured")
	}
	s.mu.RLock()
	data, err := yaml.Marshal(s.p)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create policy directory: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Set replaces the in-memory policy (used by the control surface).
func (s *Store) Set(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
}

// DefaultPath returns OS config dir / vault0 / policy.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vault0", "policy.yaml"), nil
}

// Admit decides whether host is allowed to proceed, returning the deny
// reason string from spec.md §4.7 when it is not.
func (p Policy) Admit(host string) (allowed bool, reason string) {
	if len(p.AllowDomains) > 0 {
		inAllowList := false
		for _, allow := range p.AllowDomains {
			if hasDomainSuffix(host, allow) {
				inAllowList = true
				break
			}
		}
		if !inAllowList {
			return false, "domain not in allow list"
		}
	}
	for _, blocked := range p.BlockDomains {
		if hasDomainSuffix(host, blocked) {
			return false, "domain blocked by policy"
		}
	}
	return true, ""
}

func hasDomainSuffix(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
