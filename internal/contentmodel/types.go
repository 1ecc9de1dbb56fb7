package contentmodel

import (
	"slices"

	"github.com/emory-libraries/fedora-indexdata/internal/config"
)

// DeclaredType is an object type defined only by its name and content models.
type DeclaredType struct {
	name   string
	models []string
}

// NewDeclaredType creates a type declaring the given content models.
func NewDeclaredType(name string, models ...string) *DeclaredType {
	return &DeclaredType{name: name, models: slices.Clone(models)}
}

// Name implements ObjectType.
func (d *DeclaredType) Name() string { return d.name }

// ContentModels implements ContentModelDeclarer.
func (d *DeclaredType) ContentModels() []string { return slices.Clone(d.models) }

// FromConfig converts the objectTypes configuration section into object types.
func FromConfig(types []config.ObjectTypeConfig) []ObjectType {
	out := make([]ObjectType, 0, len(types))
	for _, t := range types {
		out = append(out, NewDeclaredType(t.Name, t.ContentModels...))
	}
	return out
}
