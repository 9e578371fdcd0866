// Package catalog holds the read-only customization reference data used to
// price cart lines: sides, drinks and extras.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/models"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("customization option not found")

type Category string

const (
	Sides  Category = "sides"
	Drinks Category = "drinks"
	Extras Category = "extras"
)

// Catalog is immutable after construction and safe for concurrent reads.
// Price changes are made by building a new Catalog.
type Catalog struct {
	options map[Category]map[string]models.CustomizationOption
}

func New(sides, drinks, extras []models.CustomizationOption) *Catalog {
	c := &Catalog{options: make(map[Category]map[string]models.CustomizationOption, 3)}
	c.load(Sides, sides)
	c.load(Drinks, drinks)
	c.load(Extras, extras)
	return c
}

func (c *Catalog) load(cat Category, opts []models.CustomizationOption) {
	m := make(map[string]models.CustomizationOption, len(opts))
	for _, o := range opts {
		m[o.ID] = o
	}
	c.options[cat] = m
}

// Lookup resolves an option id within a category.
func (c *Catalog) Lookup(cat Category, id string) (models.CustomizationOption, error) {
	if c != nil {
		if opt, ok := c.options[cat][id]; ok {
			return opt, nil
		}
	}
	return models.CustomizationOption{}, fmt.Errorf("%s/%s: %w", cat, id, ErrNotFound)
}

func (c *Catalog) Side(id string) (models.CustomizationOption, error) {
	return c.Lookup(Sides, id)
}

func (c *Catalog) Drink(id string) (models.CustomizationOption, error) {
	return c.Lookup(Drinks, id)
}

func (c *Catalog) Extra(id string) (models.CustomizationOption, error) {
	return c.Lookup(Extras, id)
}

// Options lists a category sorted by id.
func (c *Catalog) Options(cat Category) []models.CustomizationOption {
	if c == nil {
		return nil
	}
	out := make([]models.CustomizationOption, 0, len(c.options[cat]))
	for _, o := range c.options[cat] {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func option(id, name string, price int64, included bool) models.CustomizationOption {
	return models.CustomizationOption{ID: id, Name: name, UnitPrice: decimal.NewFromInt(price), IncludedInBase: included}
}

// Default returns the house catalog.
func Default() *Catalog {
	return New(
		[]models.CustomizationOption{
			option("pap", "Pap", 0, true),
			option("chips", "Chips", 0, true),
			option("salad", "Salad", 0, true),
			option("rice", "Rice", 15, false),
		},
		[]models.CustomizationOption{
			option("coke", "Coke", 25, false),
			option("fanta", "Fanta", 25, false),
			option("water", "Water", 15, false),
		},
		[]models.CustomizationOption{
			option("extra-chips", "Extra Chips", 20, false),
			option("extra-salad", "Extra Salad", 25, false),
			option("sauce", "Extra Sauce", 10, false),
			option("cheese", "Extra Cheese", 15, false),
		},
	)
}

// FromConfig builds a catalog from the catalog config section, falling back
// to Default when the section is empty.
func FromConfig(cfg config.CatalogConfig) (*Catalog, error) {
	if cfg.Empty() {
		return Default(), nil
	}
	sides, err := convert(cfg.Sides)
	if err != nil {
		return nil, err
	}
	drinks, err := convert(cfg.Drinks)
	if err != nil {
		return nil, err
	}
	extras, err := convert(cfg.Extras)
	if err != nil {
		return nil, err
	}
	return New(sides, drinks, extras), nil
}

func convert(in []config.OptionConfig) ([]models.CustomizationOption, error) {
	out := make([]models.CustomizationOption, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, o := range in {
		if o.ID == "" {
			return nil, fmt.Errorf("catalog option %q has no id", o.Name)
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("duplicate catalog option %q", o.ID)
		}
		if o.Price < 0 {
			return nil, fmt.Errorf("catalog option %q has negative price", o.ID)
		}
		seen[o.ID] = true
		out = append(out, models.CustomizationOption{
			ID:             o.ID,
			Name:           o.Name,
			UnitPrice:      decimal.NewFromFloat(o.Price),
			IncludedInBase: o.Included,
		})
	}
	return out, nil
}
