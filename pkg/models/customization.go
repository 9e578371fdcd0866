package models

import "github.com/shopspring/decimal"

// CustomizationOption is catalog reference data for a side, drink or extra.
type CustomizationOption struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	IncludedInBase bool            `json:"included_in_base"`
}

// ExtraSelection is a chargeable add-on and how many of it were chosen.
type ExtraSelection struct {
	OptionID string `json:"option_id"`
	Quantity int    `json:"quantity"`
}

// Customization is the set of modifications applied to a food item.
// The id and ingredient slices are sets; order carries no meaning.
type Customization struct {
	SelectedSideIDs     []string         `json:"selected_side_ids,omitempty"`
	SelectedDrinkIDs    []string         `json:"selected_drink_ids,omitempty"`
	Extras              []ExtraSelection `json:"extras,omitempty"`
	RemovedIngredients  []string         `json:"removed_ingredients,omitempty"`
	AddedIngredients    []string         `json:"added_ingredients,omitempty"`
	SpecialInstructions string           `json:"special_instructions,omitempty"`
}

func (c Customization) Clone() Customization {
	return Customization{
		SelectedSideIDs:     cloneStrings(c.SelectedSideIDs),
		SelectedDrinkIDs:    cloneStrings(c.SelectedDrinkIDs),
		Extras:              append([]ExtraSelection(nil), c.Extras...),
		RemovedIngredients:  cloneStrings(c.RemovedIngredients),
		AddedIngredients:    cloneStrings(c.AddedIngredients),
		SpecialInstructions: c.SpecialInstructions,
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
