package skills

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"pilot/pkg/logger"
)

// Manager loads skills from a directory and publishes them copy-on-write:
// List returns an immutable snapshot, and reloads atomically replace the
// published slice, so readers never observe a partial skill set.
type Manager struct {
	dir string

	mu       sync.RWMutex
	skills   []*Skill          // published snapshot, never mutated in place
	byTool   map[string]*Skill // tool name -> skill, rebuilt on reload
	versions map[string]string // tool name -> last seen version
	subs     []func([]*Skill)
}

// NewManager creates a manager for the given skills directory.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:      dir,
		byTool:   make(map[string]*Skill),
		versions: make(map[string]string),
	}
}

// Dir returns the skills directory.
func (m *Manager) Dir() string {
	return m.dir
}

// LoadAll scans the skills directory and publishes the result. Individual
// parse failures are logged and skipped; a missing directory yields an
// empty skill set.
func (m *Manager) LoadAll() error {
	log := logger.Component("skills")

	paths, err := m.discover()
	if err != nil {
		if os.IsNotExist(err) {
			m.publish(nil)
			return nil
		}
		return err
	}

	loaded := make([]*Skill, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		skill, err := ParseSkillMD(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping invalid skill")
			continue
		}
		name := skill.ToolName()
		if prev, dup := seen[name]; dup {
			log.Warn().Str("tool", name).Str("path", path).Str("conflict", prev).
				Msg("duplicate skill tool name, keeping first")
			continue
		}
		seen[name] = path
		loaded = append(loaded, skill)
	}

	sort.Slice(loaded, func(i, j int) bool { return loaded[i].ToolName() < loaded[j].ToolName() })

	m.trackVersions(loaded)
	m.publish(loaded)
	log.Info().Int("count", len(loaded)).Str("dir", m.dir).Msg("skills loaded")
	return nil
}

// Reload is an alias for LoadAll, used by the watcher.
func (m *Manager) Reload() error {
	return m.LoadAll()
}

// List returns the current published snapshot. Callers must not mutate it.
func (m *Manager) List() []*Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.skills
}

// Get returns the skill whose tool name matches, if loaded.
func (m *Manager) Get(toolName string) (*Skill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byTool[toolName]
	return s, ok
}

// Subscribe registers a callback invoked with the new snapshot after each
// reload. The callback runs on the reloading goroutine and must not block.
func (m *Manager) Subscribe(fn func([]*Skill)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// discover finds SKILL.md files: one per subdirectory, plus a top-level
// SKILL.md if present.
func (m *Manager) discover() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			candidate := filepath.Join(m.dir, entry.Name(), "SKILL.md")
			if _, err := os.Stat(candidate); err == nil {
				paths = append(paths, candidate)
			}
			continue
		}
		if entry.Name() == "SKILL.md" {
			paths = append(paths, filepath.Join(m.dir, entry.Name()))
		}
	}
	return paths, nil
}

func (m *Manager) publish(skills []*Skill) {
	byTool := make(map[string]*Skill, len(skills))
	for _, s := range skills {
		byTool[s.ToolName()] = s
	}

	m.mu.Lock()
	m.skills = skills
	m.byTool = byTool
	subs := make([]func([]*Skill), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(skills)
	}
}

// trackVersions compares front-matter versions against the previous load
// and logs upgrades and downgrades.
func (m *Manager) trackVersions(skills []*Skill) {
	log := logger.Component("skills")

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range skills {
		name := s.ToolName()
		prev, seen := m.versions[name]
		m.versions[name] = s.Version

		if s.Version == "" || !seen || prev == s.Version {
			continue
		}

		prevV, err1 := semver.NewVersion(prev)
		newV, err2 := semver.NewVersion(s.Version)
		if err1 != nil || err2 != nil {
			log.Warn().Str("skill", name).Str("from", prev).Str("to", s.Version).
				Msg("skill version changed (not semver)")
			continue
		}

		switch {
		case newV.GreaterThan(prevV):
			log.Info().Str("skill", name).Str("from", prev).Str("to", s.Version).
				Msg("skill upgraded")
		case newV.LessThan(prevV):
			log.Warn().Str("skill", name).Str("from", prev).Str("to", s.Version).
				Msg("skill downgraded")
		}
	}
}
