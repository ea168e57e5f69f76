package language

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

//go:embed languages.yaml
var defaultTable []byte

// Registry is a read-only lookup table of supported languages. It is safe for
// concurrent use once constructed.
type Registry struct {
	byID  map[string]model.LanguageSpec
	order []string
}

type tableFile struct {
	Languages []tableEntry `yaml:"languages"`
}

type tableEntry struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	RuntimeID string `yaml:"runtime_id"`
	Extension string `yaml:"extension"`
	Sandbox   struct {
		Image   string `yaml:"image"`
		Source  string `yaml:"source"`
		Compile string `yaml:"compile"`
		Run     string `yaml:"run"`
	} `yaml:"sandbox"`
}

// Default returns the registry built from the embedded table.
func Default() *Registry {
	reg, err := Load(strings.NewReader(string(defaultTable)))
	if err != nil {
		panic(fmt.Sprintf("embedded language table is invalid: %v", err))
	}
	return reg
}

// LoadFile reads a registry table from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open language table: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a YAML language table.
func Load(r io.Reader) (*Registry, error) {
	var table tableFile
	if err := yaml.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("parse language table: %w", err)
	}

	reg := &Registry{
		byID:  make(map[string]model.LanguageSpec, len(table.Languages)),
		order: make([]string, 0, len(table.Languages)),
	}
	seen := mapset.NewThreadUnsafeSet[string]()

	for _, entry := range table.Languages {
		id := strings.ToLower(strings.TrimSpace(entry.ID))
		if id == "" {
			return nil, fmt.Errorf("language entry missing id")
		}
		if entry.Name == "" {
			return nil, fmt.Errorf("language %q missing display name", id)
		}
		if !seen.Add(id) {
			return nil, fmt.Errorf("duplicate language %q", id)
		}

		reg.byID[id] = model.LanguageSpec{
			ID:               id,
			DisplayName:      entry.Name,
			BackendRuntimeID: entry.RuntimeID,
			Extension:        entry.Extension,
			Sandbox: model.SandboxSpec{
				Image:      entry.Sandbox.Image,
				SourceFile: entry.Sandbox.Source,
				CompileCmd: entry.Sandbox.Compile,
				RunCmd:     entry.Sandbox.Run,
			},
		}
		reg.order = append(reg.order, id)
	}

	if len(reg.order) == 0 {
		return nil, fmt.Errorf("at least one language must be registered")
	}

	return reg, nil
}

// Lookup finds a language by id, ignoring case.
func (r *Registry) Lookup(id string) (model.LanguageSpec, bool) {
	spec, ok := r.byID[strings.ToLower(id)]
	return spec, ok
}

// SupportedIDs lists registered ids in table order.
func (r *Registry) SupportedIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// All lists registered languages in table order.
func (r *Registry) All() []model.LanguageSpec {
	specs := make([]model.LanguageSpec, 0, len(r.order))
	for _, id := range r.order {
		specs = append(specs, r.byID[id])
	}
	return specs
}
