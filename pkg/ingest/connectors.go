package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// Connector enumerates data files held by an external source.
type Connector interface {
	Name() string
	List(ctx context.Context) ([]string, error)
}

// Registry holds the configured ingest sources by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Connector
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Connector)}
}

func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	r.sources[c.Name()] = c
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sources[name]
	return c, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for n := range r.sources {
		out = append(out, n)
	}
	return out
}

// MirrorConnector serves files from a locally synced mirror directory. Cloud
// sources (Drive, Box) are expected to be synced to disk by an external
// agent; the connector only enumerates the mirror.
type MirrorConnector struct {
	name string
	root string
}

func NewMirrorConnector(name, root string) *MirrorConnector {
	return &MirrorConnector{name: name, root: root}
}

func (c *MirrorConnector) Name() string { return c.name }

func (c *MirrorConnector) List(ctx context.Context) ([]string, error) {
	if c.root == "" {
		return nil, fmt.Errorf("source %q has no mirror directory configured", c.name)
	}
	var out []string
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != c.root {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := dataExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk mirror %s: %w", c.root, err)
	}
	return out, nil
}
