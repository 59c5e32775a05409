// winrahi/listing/listing.go

// Package listing derives the ordered public view of a fetched item set.
// It is purely functional: the input slice is never mutated and the same
// input always produces the same output.
package listing

import (
	"sort"

	"winrahi/models"
)

// FilterAll is the sentinel meaning "no filter" for a field.
const FilterAll = "all"

// Apply filters and orders items for a public listing view.
//
// Items whose status is found_owner are removed before any other filter:
// they are resolved cases and only appear in the owner's dashboard. The
// remaining predicates are independent, so changing one filter never
// narrows the base set for the others. The result is stably sorted with
// human-category items first, then newest first within each group.
func Apply(items []models.Item, f models.ItemFilters) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		if item.Status == models.StatusFoundOwner {
			continue
		}
		if !matchField(f.Status, item.Status) {
			continue
		}
		if !matchField(f.Category, item.Category) {
			continue
		}
		if !matchField(f.Wilaya, item.Wilaya) {
			continue
		}
		if !matchField(f.Commune, item.Commune) {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aHuman := a.Category == models.CategoryHuman
		bHuman := b.Category == models.CategoryHuman
		if aHuman != bHuman {
			return aHuman
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return out
}

// matchField reports whether a field value passes its filter selection.
// An empty or "all" selection passes everything.
func matchField(selected, value string) bool {
	return selected == "" || selected == FilterAll || selected == value
}
