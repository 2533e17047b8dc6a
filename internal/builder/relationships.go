package builder

import (
	"fmt"

	"persist/internal/metadata"
	"persist/internal/record"
)

// injectRelationships writes a foreign key for every relationship of the
// entity type whose parent is present in cache. Relationships are applied
// in catalog order, so a later one wins if two share a column.
func (b *Builder) injectRelationships(rec record.Record, entity *metadata.Entity, cache Cache) error {
	if cache == nil || b.rels == nil {
		return nil
	}
	for _, rel := range b.rels.RelationshipsForChild(entity.Type) {
		parent, ok := cache.Parent(rel.Parent)
		if !ok || parent == nil {
			continue
		}
		if b.ids == nil {
			return &BuildError{Entity: entity.Name, Column: rel.ForeignKey, Err: fmt.Errorf("no identifier resolver for parent %s", rel.Parent)}
		}
		id, err := b.ids.IdentifierOf(parent)
		if err != nil {
			return &BuildError{Entity: entity.Name, Column: rel.ForeignKey, Err: err}
		}
		rec.Put(rel.ForeignKey, id)
	}
	return nil
}
