package expert

import (
	"errors"
	"fmt"
	"slices"

	"github.com/alexchuang650730/aicore0624-sub006/internal/eval/template"
)

var (
	// ErrInvalidCatalog reports a catalog that cannot be used for routing.
	ErrInvalidCatalog = errors.New("invalid expert catalog")

	// ErrExpertNotFound is returned when an id is not in the catalog.
	ErrExpertNotFound = errors.New("expert not found")
)

// Definition describes one expert: the keywords that select it and the
// prompt it sends to the backend.
type Definition struct {
	ID             string   `json:"id" yaml:"id"`
	DisplayName    string   `json:"display_name" yaml:"display_name"`
	Keywords       []string `json:"keywords" yaml:"keywords"`
	PromptTemplate string   `json:"prompt_template" yaml:"prompt_template"`
}

// Tag returns the label prefixed to this expert's output.
func (d Definition) Tag() string {
	return "【" + d.DisplayName + "】"
}

func (d Definition) clone() Definition {
	d.Keywords = slices.Clone(d.Keywords)
	return d
}

// Catalog is an immutable, ordered set of experts with a fallback expert.
type Catalog struct {
	order     []string
	byID      map[string]Definition
	defaultID string
	engine    *template.Engine
}

// NewCatalog validates defs and builds a catalog. Declaration order is kept
// and drives routing order.
func NewCatalog(defs []Definition, defaultID string, engine *template.Engine) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no experts defined", ErrInvalidCatalog)
	}
	if engine == nil {
		engine = template.NewEngine()
	}

	c := &Catalog{
		order:     make([]string, 0, len(defs)),
		byID:      make(map[string]Definition, len(defs)),
		defaultID: defaultID,
		engine:    engine,
	}

	for i, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("%w: expert %d: id is required", ErrInvalidCatalog, i)
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate expert id %q", ErrInvalidCatalog, def.ID)
		}
		if len(def.Keywords) == 0 {
			return nil, fmt.Errorf("%w: expert %q: keywords are required", ErrInvalidCatalog, def.ID)
		}
		for _, kw := range def.Keywords {
			if kw == "" {
				return nil, fmt.Errorf("%w: expert %q: empty keyword", ErrInvalidCatalog, def.ID)
			}
		}
		if err := c.validateTemplate(def); err != nil {
			return nil, err
		}
		if def.DisplayName == "" {
			def.DisplayName = def.ID
		}

		c.order = append(c.order, def.ID)
		c.byID[def.ID] = def.clone()
	}

	if defaultID == "" {
		return nil, fmt.Errorf("%w: default expert is required", ErrInvalidCatalog)
	}
	if _, ok := c.byID[defaultID]; !ok {
		return nil, fmt.Errorf("%w: default expert %q is not defined", ErrInvalidCatalog, defaultID)
	}

	return c, nil
}

func (c *Catalog) validateTemplate(def Definition) error {
	if err := c.engine.ValidateTemplate(def.PromptTemplate); err != nil {
		return fmt.Errorf("%w: expert %q: prompt template: %v", ErrInvalidCatalog, def.ID, err)
	}

	n, err := c.engine.CountRequestSlots(def.PromptTemplate)
	if err != nil {
		return fmt.Errorf("%w: expert %q: prompt template: %v", ErrInvalidCatalog, def.ID, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: expert %q: prompt template must contain exactly one {{%s}} slot, found %d",
			ErrInvalidCatalog, def.ID, template.RequestVar, n)
	}

	return nil
}

// Get returns the definition for id.
func (c *Catalog) Get(id string) (Definition, error) {
	def, ok := c.byID[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrExpertNotFound, id)
	}
	return def.clone(), nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// IDs returns expert ids in declaration order.
func (c *Catalog) IDs() []string {
	return slices.Clone(c.order)
}

// Definitions returns all definitions in declaration order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].clone())
	}
	return out
}

// Default returns the fallback expert id.
func (c *Catalog) Default() string {
	return c.defaultID
}

// Len returns the number of experts.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Render renders the prompt of expert id with request in its slot.
func (c *Catalog) Render(id, request string) (string, error) {
	def, ok := c.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrExpertNotFound, id)
	}

	prompt, err := c.engine.RenderRequest(def.PromptTemplate, request, nil)
	if err != nil {
		return "", fmt.Errorf("render prompt for expert %q: %w", id, err)
	}

	return prompt, nil
}

// Engine returns the template engine used by the catalog.
func (c *Catalog) Engine() *template.Engine {
	return c.engine
}
