package store

import (
	"context"
	"fmt"
)

// loader reads the committed state of a document inside a backend transaction.
type loader func(ctx context.Context, p Path) (Document, error)

// change is the final state of one document touched by a batch. A change with
// Exists == false is a deletion.
type change struct {
	Document
	created bool
	dirty   bool
	// base is the version that was loaded, for optimistic writes.
	base int64
}

// planBatch evaluates ops against the state returned by load. Later ops see
// the effects of earlier ones. It returns the resulting document states in
// first-touched order, or a Conflict/NotFound error when a guard or update
// precondition fails. Nothing is written.
func planBatch(ctx context.Context, op string, ops []Op, load loader) ([]change, error) {
	overlay := make(map[Path]*change, len(ops))
	order := make([]Path, 0, len(ops))

	current := func(p Path) (*change, error) {
		if c, ok := overlay[p]; ok {
			return c, nil
		}
		doc, err := load(ctx, p)
		if err != nil {
			return nil, asStoreError(Unavailable, op, p, err)
		}
		doc.Path = p
		c := &change{Document: doc, created: !doc.Exists, base: doc.Version}
		overlay[p] = c
		order = append(order, p)
		return c, nil
	}

	for _, o := range ops {
		c, err := current(o.Path)
		if err != nil {
			return nil, err
		}
		switch o.Kind {
		case OpRequireExists:
			if !c.Exists {
				return nil, newError(Conflict, op, o.Path, errGuardMissing)
			}
		case OpRequireAbsent:
			if c.Exists {
				return nil, newError(Conflict, op, o.Path, errGuardExists)
			}
		case OpSet:
			base := Fields{}
			if o.Merge && c.Exists {
				base = c.Fields
			}
			c.Fields = mergeFields(base, o.Fields)
			c.Exists = true
			c.Version++
			c.dirty = true
		case OpUpdate:
			if !c.Exists {
				return nil, newError(NotFound, op, o.Path, errGuardMissing)
			}
			c.Fields = mergeFields(c.Fields, o.Fields)
			c.Version++
			c.dirty = true
		case OpDelete:
			c.Fields = nil
			c.Exists = false
			c.Version++
			c.dirty = true
		default:
			return nil, newError(Invalid, op, o.Path, fmt.Errorf("unknown op kind %d", o.Kind))
		}
	}

	out := make([]change, 0, len(order))
	for _, p := range order {
		c := overlay[p]
		if !c.dirty || (c.created && !c.Exists) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// mergeFields copies base and applies update on top, resolving Increment
// values against the current number.
func mergeFields(base, update Fields) Fields {
	out := make(Fields, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		if inc, ok := v.(Increment); ok {
			cur, _ := toInt64(out[k])
			out[k] = cur + int64(inc)
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

// touchedCollections lists the distinct parent collections of changes.
func touchedCollections(changes []change) []Path {
	seen := make(map[Path]struct{}, len(changes))
	out := make([]Path, 0, len(changes))
	for _, c := range changes {
		parent := c.Path.Parent()
		if _, ok := seen[parent]; ok {
			continue
		}
		seen[parent] = struct{}{}
		out = append(out, parent)
	}
	return out
}
