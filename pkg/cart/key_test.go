package cart

import (
	"testing"

	"github.com/example/foodcart/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := Normalize(models.Customization{
		SelectedSideIDs:  []string{"salad", "chips", "salad"},
		SelectedDrinkIDs: []string{},
		Extras: []models.ExtraSelection{
			{OptionID: "sauce", Quantity: 1},
			{OptionID: "cheese", Quantity: 1},
			{OptionID: "sauce", Quantity: 2},
			{OptionID: "extra-chips", Quantity: 0},
		},
		RemovedIngredients: []string{"onion"},
	})

	assert.Equal(t, []string{"chips", "salad"}, n.SelectedSideIDs)
	assert.Nil(t, n.SelectedDrinkIDs)
	assert.Equal(t, []models.ExtraSelection{{OptionID: "cheese", Quantity: 1}, {OptionID: "sauce", Quantity: 3}}, n.Extras)
	assert.Equal(t, []string{"onion"}, n.RemovedIngredients)
	assert.Nil(t, n.AddedIngredients)
}

func TestStructuralKey(t *testing.T) {
	a := models.Customization{
		SelectedSideIDs: []string{"pap", "salad"},
		Extras:          []models.ExtraSelection{{OptionID: "cheese", Quantity: 1}, {OptionID: "sauce", Quantity: 2}},
	}
	b := models.Customization{
		SelectedSideIDs: []string{"salad", "pap"},
		Extras:          []models.ExtraSelection{{OptionID: "sauce", Quantity: 1}, {OptionID: "cheese", Quantity: 1}, {OptionID: "sauce", Quantity: 1}},
	}

	assert.Equal(t, StructuralKey("burger", a), StructuralKey("burger", b))
	assert.True(t, Equivalent(a, b))
	assert.NotEqual(t, StructuralKey("burger", a), StructuralKey("wrap", a))

	c := a
	c.SpecialInstructions = "well done"
	assert.False(t, Equivalent(a, c))

	// nil and empty collections are the same customization
	assert.True(t, Equivalent(models.Customization{}, models.Customization{AddedIngredients: []string{}}))
}
