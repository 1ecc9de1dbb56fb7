package indexdata

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/emory-libraries/fedora-indexdata/internal/contentmodel"
	"github.com/emory-libraries/fedora-indexdata/internal/fedora"
)

// Fields is the index field mapping of one object. Values are strings or
// string slices.
type Fields map[string]any

// Indexer is implemented by object types that contribute fields of their
// own. IndexData runs after the default projection and may add, replace or
// delete entries.
type Indexer interface {
	IndexData(obj *fedora.Object, fields Fields) error
}

// Projector turns repository objects into index field mappings
type Projector struct {
	registry *contentmodel.Registry
}

// NewProjector creates a projector dispatching on the types in registry
func NewProjector(registry *contentmodel.Registry) *Projector {
	return &Projector{registry: registry}
}

// Project computes the fields of obj. The returned name is the registered
// type that handled the object, or "" when only the default projection ran.
func (p *Projector) Project(obj *fedora.Object) (Fields, string, error) {
	if obj == nil {
		return nil, "", fmt.Errorf("object cannot be nil")
	}

	fields := DefaultFields(obj)

	if p.registry == nil {
		return fields, "", nil
	}
	objectType := p.registry.BestMatch(obj.ContentModels)
	if objectType == nil {
		return fields, "", nil
	}

	if indexer, ok := objectType.(Indexer); ok {
		if err := indexer.IndexData(obj, fields); err != nil {
			return nil, objectType.Name(), fmt.Errorf("%s index data: %w", objectType.Name(), err)
		}
	}
	return fields, objectType.Name(), nil
}

// DefaultFields is the projection every object gets: Dublin Core elements,
// external relations, then the object properties. Empty values are left out.
func DefaultFields(obj *fedora.Object) Fields {
	fields := Fields{}

	for name, values := range obj.DublinCore {
		if len(values) > 0 {
			fields[name] = slices.Clone(values)
		}
	}
	for predicate, values := range obj.Relations {
		if len(values) > 0 {
			fields[predicate] = slices.Clone(values)
		}
	}

	fields["pid"] = obj.PID
	setString(fields, "label", obj.Label)
	setString(fields, "state", obj.State)
	setString(fields, "created", obj.Created)
	setString(fields, "last_modified", obj.LastModified)

	if owners := splitOwners(obj.OwnerID); len(owners) > 0 {
		fields["owner"] = owners
	}
	if len(obj.ContentModels) > 0 {
		fields["content_model"] = slices.Clone(obj.ContentModels)
	}
	if len(obj.DatastreamIDs) > 0 {
		fields["dsids"] = slices.Clone(obj.DatastreamIDs)
	}

	return fields
}

// FieldNames returns the sorted field names of f
func (f Fields) FieldNames() []string {
	return slices.Sorted(maps.Keys(f))
}

func setString(fields Fields, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

// splitOwners splits the comma separated owner id
func splitOwners(ownerID string) []string {
	var owners []string
	for _, owner := range strings.Split(ownerID, ",") {
		if owner = strings.TrimSpace(owner); owner != "" {
			owners = append(owners, owner)
		}
	}
	return owners
}
