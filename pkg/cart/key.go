package cart

import (
	"encoding/json"
	"sort"

	"github.com/example/foodcart/pkg/models"
)

// Normalize returns the canonical form of a customization: sets deduplicated
// and sorted, extras summed per option with non-positive quantities dropped
// and sorted by option id. Empty collections become nil.
func Normalize(c models.Customization) models.Customization {
	return models.Customization{
		SelectedSideIDs:     sortedSet(c.SelectedSideIDs),
		SelectedDrinkIDs:    sortedSet(c.SelectedDrinkIDs),
		Extras:              reduceExtras(c.Extras),
		RemovedIngredients:  sortedSet(c.RemovedIngredients),
		AddedIngredients:    sortedSet(c.AddedIngredients),
		SpecialInstructions: c.SpecialInstructions,
	}
}

// StructuralKey identifies a (food, customization) pair for merge-or-append.
// It is never used to address lines.
func StructuralKey(foodID string, c models.Customization) string {
	// A struct of strings, ints and slices always marshals.
	b, _ := json.Marshal(Normalize(c))
	return foodID + "\x00" + string(b)
}

// Equivalent reports whether two customizations compare equal as sets.
func Equivalent(a, b models.Customization) bool {
	return StructuralKey("", a) == StructuralKey("", b)
}

func sortedSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func reduceExtras(in []models.ExtraSelection) []models.ExtraSelection {
	qty := make(map[string]int, len(in))
	for _, e := range in {
		qty[e.OptionID] += e.Quantity
	}
	var out []models.ExtraSelection
	for id, q := range qty {
		if q > 0 {
			out = append(out, models.ExtraSelection{OptionID: id, Quantity: q})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OptionID < out[j].OptionID })
	return out
}
