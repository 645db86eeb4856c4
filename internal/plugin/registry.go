package plugin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Registry holds all registered systems and connectors. Connectors are
// looked up by "system/operation" (latest version) or
// "system/operation@vN".
type Registry struct {
	mu         sync.RWMutex
	systems    map[string]*System
	connectors map[string]map[int]Connector
}

// NewRegistry creates a new empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		systems:    make(map[string]*System),
		connectors: make(map[string]map[int]Connector),
	}
}

// RegisterSystem adds a system descriptor.
func (r *Registry) RegisterSystem(s *System) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Name == "" {
		return fmt.Errorf("system name is required")
	}
	if _, exists := r.systems[s.Name]; exists {
		return fmt.Errorf("system %q already registered", s.Name)
	}
	r.systems[s.Name] = s
	return nil
}

// Register adds a connector to the registry.
func (r *Registry) Register(c Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := c.Info()
	if info.System == "" || info.Operation == "" {
		return fmt.Errorf("connector %q must name a system and an operation", info.Name())
	}
	versions, ok := r.connectors[info.Name()]
	if !ok {
		versions = make(map[int]Connector)
		r.connectors[info.Name()] = versions
	}
	if _, exists := versions[info.version()]; exists {
		return fmt.Errorf("connector %q already registered", info.Ref())
	}
	versions[info.version()] = c
	return nil
}

// ParseRef splits "name@vN" into name and version; version 0 means latest.
func ParseRef(ref string) (string, int, error) {
	name, v, found := strings.Cut(ref, "@")
	if !found {
		return name, 0, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(v, "v"))
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("invalid version in %q", ref)
	}
	return name, n, nil
}

// Get returns a connector by reference.
func (r *Registry) Get(ref string) (Connector, bool) {
	name, version, err := ParseRef(ref)
	if err != nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.connectors[name]
	if !ok {
		return nil, false
	}
	if version == 0 {
		for v := range versions {
			if v > version {
				version = v
			}
		}
	}
	c, ok := versions[version]
	return c, ok
}

// System returns a system by name.
func (r *Registry) System(name string) (*System, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.systems[name]
	return s, ok
}

// Systems returns every system sorted by name.
func (r *Registry) Systems() []*System {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*System, 0, len(r.systems))
	for _, s := range r.systems {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// List returns the info of every registered connector version, sorted by
// name then version.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []Info
	for _, versions := range r.connectors {
		for _, c := range versions {
			infos = append(infos, c.Info())
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name() != infos[j].Name() {
			return infos[i].Name() < infos[j].Name()
		}
		return infos[i].version() < infos[j].version()
	})
	return infos
}
