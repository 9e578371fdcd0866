package cart

import (
	"github.com/example/foodcart/pkg/catalog"
	"github.com/example/foodcart/pkg/models"
	"github.com/shopspring/decimal"
)

// UnitPrice is the price of one unit of a customized item: the base price,
// plus every extra times its quantity, plus every selected drink that is not
// included in the base. Sides never add to the price. Ids the catalog cannot
// resolve contribute nothing, so historical selections stay priceable.
func UnitPrice(cat *catalog.Catalog, basePrice decimal.Decimal, c models.Customization) decimal.Decimal {
	n := Normalize(c)
	total := basePrice

	for _, e := range n.Extras {
		opt, err := cat.Extra(e.OptionID)
		if err != nil {
			continue
		}
		total = total.Add(opt.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}

	for _, id := range n.SelectedDrinkIDs {
		opt, err := cat.Drink(id)
		if err != nil || opt.IncludedInBase {
			continue
		}
		total = total.Add(opt.UnitPrice)
	}

	return total
}

// Price is UnitPrice times quantity.
func Price(cat *catalog.Catalog, basePrice decimal.Decimal, quantity int, c models.Customization) decimal.Decimal {
	return UnitPrice(cat, basePrice, c).Mul(decimal.NewFromInt(int64(quantity)))
}
