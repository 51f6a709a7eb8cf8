// Package validator implements the Configuration Validator (spec.md §4.6):
// a read-only, product-level check of whether a base product plus a set
// of accessory ids satisfies the relation model in spec.md §3
// (compatible/requires/conflicts/recommended/alternative/prerequisite).
// It is not on the ingest hot path; API callers invoke it against already
// persisted Product/ProductAccessory rows.
package validator

import (
	"context"
	"fmt"
	"sort"

	"github.com/kunzeritter/docpipeline/internal/model"
)

// Graph is the subset of persisted product/accessory data the validator
// needs: every accessory edge declared for a product id (either as the
// base product or as another accessory in the configuration).
type Graph interface {
	// Edges returns every ProductAccessory row where ProductID == id.
	Edges(ctx context.Context, productID string) ([]model.ProductAccessory, error)
}

// Result is the outcome of Validate.
type Result struct {
	Valid           bool
	Errors          []string
	Warnings        []string
	Recommendations []string
}

// Validate checks baseProductID plus accessoryIDs against g's relation
// model:
//   - every `requires` target of any selected item (base or accessory)
//     must be present in the configuration, directly or transitively —
//     a missing one is an error, and a transitive (not directly declared)
//     one is flagged by name in the error message per spec.md §4.6.
//   - no `conflicts` pair may both be present — an error.
//   - `alternative` edges are reported as warnings, not errors.
//   - `recommended` edges not already present are reported as
//     recommendations.
//
// Validate detects cycles in the requires graph via DFS so a
// misconfigured relation table (A requires B requires A) fails closed
// with an error instead of looping forever.
func Validate(ctx context.Context, g Graph, baseProductID string, accessoryIDs []string) (Result, error) {
	selected := map[string]bool{baseProductID: true}
	for _, id := range accessoryIDs {
		selected[id] = true
	}

	items := append([]string{baseProductID}, accessoryIDs...)
	sort.Strings(items[1:])

	var res Result
	res.Valid = true

	seenRequires := map[string]bool{} // dedupe identical error/recommendation lines
	seenConflict := map[string]bool{}

	visiting := map[string]bool{}
	visited := map[string]bool{}

	var walkRequires func(id string, direct bool) error
	walkRequires = func(id string, direct bool) error {
		if visiting[id] {
			return fmt.Errorf("cycle detected in requires graph at %s", id)
		}
		if visited[id] {
			return nil
		}
		visiting[id] = true
		defer func() { visiting[id] = false; visited[id] = true }()

		edges, err := g.Edges(ctx, id)
		if err != nil {
			return fmt.Errorf("load edges for %s: %w", id, err)
		}
		for _, e := range edges {
			switch e.CompatibilityType {
			case model.CompatRequires:
				if !selected[e.AccessoryID] {
					key := id + "->" + e.AccessoryID
					if !seenRequires[key] {
						seenRequires[key] = true
						res.Valid = false
						if direct {
							res.Errors = append(res.Errors, fmt.Sprintf("%s requires %s, which is not present", id, e.AccessoryID))
						} else {
							res.Errors = append(res.Errors, fmt.Sprintf("%s transitively requires %s (via %s), which is not present", baseProductID, e.AccessoryID, id))
						}
					}
				} else if err := walkRequires(e.AccessoryID, false); err != nil {
					return err
				}
			case model.CompatConflicts:
				if selected[e.AccessoryID] {
					a, b := id, e.AccessoryID
					if a > b {
						a, b = b, a
					}
					key := a + "<->" + b
					if !seenConflict[key] {
						seenConflict[key] = true
						res.Valid = false
						res.Errors = append(res.Errors, fmt.Sprintf("%s conflicts with %s, and both are present", a, b))
					}
				}
			case model.CompatAlternative:
				if !selected[e.AccessoryID] {
					res.Warnings = append(res.Warnings, fmt.Sprintf("%s has an untried alternative: %s", id, e.AccessoryID))
				}
			case model.CompatRecommended:
				if !selected[e.AccessoryID] {
					res.Recommendations = append(res.Recommendations, fmt.Sprintf("%s recommends %s", id, e.AccessoryID))
				}
			}
		}
		return nil
	}

	for _, id := range items {
		if err := walkRequires(id, true); err != nil {
			return Result{}, err
		}
	}

	return res, nil
}
