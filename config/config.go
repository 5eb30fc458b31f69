// Package config implements the hierarchical TOML configuration of
// SPEC_FULL.md §2.1, mirroring modules/zeta/config's layered
// Overwrite pattern: a user-level config, a repo-level config, and a
// workspace-level config, each overwriting the fields the one below it
// left unset.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

func overwriteString(a, b string) string {
	if b != "" {
		return b
	}
	return a
}

// Store configures the object store (spec §4.1): which hash and
// compression algorithms new objects are written with.
type Store struct {
	HashAlgo        string `toml:"hash-algo,omitempty"`
	CompressionAlgo string `toml:"compression-algo,omitempty"`
}

func (s *Store) Overwrite(o *Store) {
	s.HashAlgo = overwriteString(s.HashAlgo, o.HashAlgo)
	s.CompressionAlgo = overwriteString(s.CompressionAlgo, o.CompressionAlgo)
}

// Signing configures the commit-signing backend and policy (spec
// §4.10).
type Signing struct {
	Backend string `toml:"backend,omitempty"` // registry name, e.g. "openpgp"
	Key     string `toml:"key,omitempty"`
	// Policy is one of "own", "force", "drop" (sign.Policy's names).
	Policy string `toml:"policy,omitempty"`
}

func (s *Signing) Overwrite(o *Signing) {
	s.Backend = overwriteString(s.Backend, o.Backend)
	s.Key = overwriteString(s.Key, o.Key)
	s.Policy = overwriteString(s.Policy, o.Policy)
}

// GC configures garbage-collection thresholds (spec §4.1 / §4.11).
type GC struct {
	// KeepOlderThan is a duration string (e.g. "30d") below which an
	// unreachable object is kept rather than reclaimed, giving a grace
	// window for concurrent readers.
	KeepOlderThan string `toml:"keep-older-than,omitempty"`
}

func (g *GC) Overwrite(o *GC) {
	g.KeepOlderThan = overwriteString(g.KeepOlderThan, o.KeepOlderThan)
}

// Revset configures named aliases for the revset query engine (spec
// §4.6).
type Revset struct {
	Aliases map[string]string `toml:"aliases,omitempty"`
}

func (r *Revset) Overwrite(o *Revset) {
	if len(o.Aliases) == 0 {
		return
	}
	if r.Aliases == nil {
		r.Aliases = map[string]string{}
	}
	for k, v := range o.Aliases {
		r.Aliases[k] = v
	}
}

// Fileset configures the default auto-track pattern new files are
// matched against during a snapshot (spec §4.9).
type Fileset struct {
	AutoTrackPattern string `toml:"auto-track-pattern,omitempty"`
}

func (f *Fileset) Overwrite(o *Fileset) {
	f.AutoTrackPattern = overwriteString(f.AutoTrackPattern, o.AutoTrackPattern)
}

// User identifies the local committer (spec §3's Signature).
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

func (u *User) Overwrite(o *User) {
	u.Name = overwriteString(u.Name, o.Name)
	u.Email = overwriteString(u.Email, o.Email)
}

// Config is the full layered configuration.
type Config struct {
	User    User    `toml:"user,omitempty"`
	Store   Store   `toml:"store,omitempty"`
	Signing Signing `toml:"signing,omitempty"`
	GC      GC      `toml:"gc,omitempty"`
	Revset  Revset  `toml:"revset,omitempty"`
	Fileset Fileset `toml:"fileset,omitempty"`
}

// Overwrite copies every non-zero field set in o onto c, the same
// "more specific layer wins" contract as the teacher's Config.Overwrite.
func (c *Config) Overwrite(o *Config) {
	c.User.Overwrite(&o.User)
	c.Store.Overwrite(&o.Store)
	c.Signing.Overwrite(&o.Signing)
	c.GC.Overwrite(&o.GC)
	c.Revset.Overwrite(&o.Revset)
	c.Fileset.Overwrite(&o.Fileset)
}

// Default returns the built-in baseline every layer overwrites on top
// of.
func Default() *Config {
	return &Config{
		Store:   Store{HashAlgo: "blake3", CompressionAlgo: "zstd"},
		Signing: Signing{Policy: "own"},
		GC:      GC{KeepOlderThan: "14d"},
		Fileset: Fileset{AutoTrackPattern: "all()"},
	}
}

// LoadUser reads ~/.jjconfig.toml, returning Default() unchanged if it
// doesn't exist.
func LoadUser() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Default(), nil
	}
	return loadLayer(filepath.Join(home, ".jjconfig.toml"), Default())
}

// LoadRepo reads <repoRoot>/.jj/repo/config.toml, layered on top of
// base (typically LoadUser's result).
func LoadRepo(repoRoot string, base *Config) (*Config, error) {
	return loadLayer(filepath.Join(repoRoot, ".jj", "repo", "config.toml"), base)
}

// LoadWorkspace reads <workspaceRoot>/.jj/config.toml, layered on top
// of base (typically LoadRepo's result).
func LoadWorkspace(workspaceRoot string, base *Config) (*Config, error) {
	return loadLayer(filepath.Join(workspaceRoot, ".jj", "config.toml"), base)
}

func loadLayer(path string, base *Config) (*Config, error) {
	cfg := *base
	if base.Revset.Aliases != nil {
		cfg.Revset.Aliases = make(map[string]string, len(base.Revset.Aliases))
		for k, v := range base.Revset.Aliases {
			cfg.Revset.Aliases[k] = v
		}
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	var layer Config
	if _, err := toml.DecodeFile(path, &layer); err != nil {
		return nil, err
	}
	cfg.Overwrite(&layer)
	return &cfg, nil
}
