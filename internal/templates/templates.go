// Package templates provides the board templates boards are built from.
package templates

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// templateNamespace seeds uids for templates declared without one, so a template file
// yields the same uids on every load.
var templateNamespace = uuid.MustParse("6f1f5e8a-3c1e-4d8b-9a57-2f0c4d7e9b10")

// Provider resolves templates by uid or unique name.
type Provider interface {
	GetByUID(ctx context.Context, uid uuid.UUID) (*blackboard.Template, error)
	GetByUniqueName(ctx context.Context, name string) (*blackboard.Template, error)
}

// MemoryProvider holds a fixed set of templates.
type MemoryProvider struct {
	mu     sync.RWMutex
	byUID  map[uuid.UUID]*blackboard.Template
	byName map[string]*blackboard.Template
}

// NewMemoryProvider validates and registers the given templates.
func NewMemoryProvider(templates ...*blackboard.Template) (*MemoryProvider, error) {
	p := &MemoryProvider{
		byUID:  make(map[uuid.UUID]*blackboard.Template),
		byName: make(map[string]*blackboard.Template),
	}
	for _, t := range templates {
		if err := p.Register(t); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Register adds a template. Unique names must stay unique.
func (p *MemoryProvider) Register(t *blackboard.Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	t = t.Clone()
	if t.UID == uuid.Nil {
		t.UID = uuid.NewSHA1(templateNamespace, []byte(t.UniqueName))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.byName[t.UniqueName]; ok && existing.UID != t.UID {
		return fmt.Errorf("duplicate template unique_name '%s'", t.UniqueName)
	}
	p.byUID[t.UID] = t
	p.byName[t.UniqueName] = t
	return nil
}

func (p *MemoryProvider) GetByUID(_ context.Context, uid uuid.UUID) (*blackboard.Template, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.byUID[uid]
	if !ok {
		return nil, &blackboard.MissingDefinitionError{Kind: "template", Key: uid.String()}
	}
	return t.Clone(), nil
}

func (p *MemoryProvider) GetByUniqueName(_ context.Context, name string) (*blackboard.Template, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.byName[name]
	if !ok {
		return nil, &blackboard.MissingDefinitionError{Kind: "template", Key: name}
	}
	return t.Clone(), nil
}

// Names lists the registered unique names in order.
func (p *MemoryProvider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File is the on-disk template document.
type File struct {
	Templates []*blackboard.Template `yaml:"templates"`
}

// LoadFile reads a YAML template file into a MemoryProvider.
func LoadFile(path string) (*MemoryProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML template document.
func Parse(data []byte) (*MemoryProvider, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(f.Templates) == 0 {
		return nil, fmt.Errorf("no templates defined")
	}
	p, err := NewMemoryProvider(f.Templates...)
	if err != nil {
		return nil, fmt.Errorf("invalid templates: %w", err)
	}
	return p, nil
}
