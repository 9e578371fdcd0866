package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/example/foodcart/pkg/catalog"
	"github.com/example/foodcart/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSelection = errors.New("invalid cart selection")
	ErrLineNotFound     = errors.New("cart line not found")
)

// Selection is what the menu hands to the cart when a customer adds an item.
type Selection struct {
	FoodID        string               `json:"food_id"`
	Name          string               `json:"name"`
	BasePrice     decimal.Decimal      `json:"base_price"`
	ImageURL      string               `json:"image_url,omitempty"`
	Quantity      int                  `json:"quantity"`
	Customization models.Customization `json:"customization"`
}

func (s Selection) validate() error {
	if s.FoodID == "" {
		return fmt.Errorf("%w: food id is required", ErrInvalidSelection)
	}
	if s.BasePrice.IsNegative() {
		return fmt.Errorf("%w: base price cannot be negative", ErrInvalidSelection)
	}
	if s.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidSelection)
	}
	return validateExtras(s.Customization)
}

func validateExtras(c models.Customization) error {
	for _, e := range c.Extras {
		if e.Quantity < 0 {
			return fmt.Errorf("%w: extra %q has negative quantity", ErrInvalidSelection, e.OptionID)
		}
	}
	return nil
}

// Edit replaces the quantity and customization of an existing line.
type Edit struct {
	Quantity      int                  `json:"quantity"`
	Customization models.Customization `json:"customization"`
}

// Line is a priced view of a cart line. Prices are computed when the view is
// built and are never stored on the line itself.
type Line struct {
	ID            string               `json:"id"`
	FoodID        string               `json:"food_id"`
	Name          string               `json:"name"`
	BasePrice     decimal.Decimal      `json:"base_price"`
	Quantity      int                  `json:"quantity"`
	ImageURL      string               `json:"image_url,omitempty"`
	Customization models.Customization `json:"customization"`
	UnitPrice     decimal.Decimal      `json:"unit_price"`
	Total         decimal.Decimal      `json:"total"`
}

// SavedLine is the persisted form of a line, used to restore a session cart.
type SavedLine struct {
	ID        string    `json:"id"`
	Selection Selection `json:"selection"`
}

type entry struct {
	id  string
	key string
	sel Selection
}

// Store is the cart of one session. All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	entries []*entry
	newID   func() string
}

type Option func(*Store)

// WithIDGenerator replaces the random line id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

func NewStore(cat *catalog.Catalog, opts ...Option) *Store {
	s := &Store{
		catalog: cat,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCatalog swaps the catalog used to price lines from now on.
func (s *Store) SetCatalog(cat *catalog.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = cat
}

// AddToCart merges the selection into the line with the same food and an
// equivalent customization, or appends a new line. It returns the id of the
// affected line.
func (s *Store) AddToCart(sel Selection) (string, error) {
	if err := sel.validate(); err != nil {
		return "", err
	}
	sel.Customization = Normalize(sel.Customization)
	key := StructuralKey(sel.FoodID, sel.Customization)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.findKey(key); e != nil {
		e.sel.Quantity += sel.Quantity
		return e.id, nil
	}

	e := &entry{id: s.newID(), key: key, sel: sel}
	s.entries = append(s.entries, e)
	return e.id, nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line. Unknown ids are ignored.
func (s *Store) UpdateQuantity(id string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		s.removeAt(i)
		return
	}
	s.entries[i].sel.Quantity = quantity
}

// UpdateLine replaces quantity and customization of a line, keeping its id.
// If the edit makes the line equivalent to another line, the other line's
// quantity is folded in and the other line is removed.
func (s *Store) UpdateLine(id string, edit Edit) error {
	if edit.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidSelection)
	}
	if err := validateExtras(edit.Customization); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrLineNotFound)
	}
	e := s.entries[i]
	custom := Normalize(edit.Customization)
	key := StructuralKey(e.sel.FoodID, custom)

	quantity := edit.Quantity
	if other := s.findKey(key); other != nil && other.id != e.id {
		quantity += other.sel.Quantity
		s.removeAt(s.index(other.id))
	}

	e.key = key
	e.sel.Customization = custom
	e.sel.Quantity = quantity
	return nil
}

// RemoveFromCart drops a line if present.
func (s *Store) RemoveFromCart(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(id); i >= 0 {
		s.removeAt(i)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// RemoveOrdered takes lines that were ordered from a snapshot out of the cart.
// A line edited since the snapshot stays; a line that only grew keeps the
// extra quantity. Lines added after the snapshot are untouched.
func (s *Store) RemoveOrdered(ordered []models.LineSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range ordered {
		i := s.index(l.LineID)
		if i < 0 {
			continue
		}
		e := s.entries[i]
		if e.key != StructuralKey(l.FoodID, l.Customization) {
			continue
		}
		if e.sel.Quantity > l.Quantity {
			e.sel.Quantity -= l.Quantity
			continue
		}
		s.removeAt(i)
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Lines returns priced views of all lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Line, len(s.entries))
	for i, e := range s.entries {
		out[i] = s.view(e)
	}
	return out
}

func (s *Store) Line(id string) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.index(id)
	if i < 0 {
		return Line{}, false
	}
	return s.view(s.entries[i]), true
}

// Total is the sum of all line totals, recomputed on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, e := range s.entries {
		total = total.Add(s.view(e).Total)
	}
	return total
}

// ItemCount is the sum of quantities across lines.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		n += e.sel.Quantity
	}
	return n
}

// Snapshot freezes the current lines with their prices. The result shares
// nothing with the store.
func (s *Store) Snapshot() []models.LineSnapshot {
	lines := s.Lines()
	out := make([]models.LineSnapshot, len(lines))
	for i, l := range lines {
		out[i] = models.LineSnapshot{
			LineID:        l.ID,
			FoodID:        l.FoodID,
			Name:          l.Name,
			BasePrice:     l.BasePrice,
			UnitPrice:     l.UnitPrice,
			Quantity:      l.Quantity,
			ImageURL:      l.ImageURL,
			Customization: l.Customization.Clone(),
			Total:         l.Total,
		}
	}
	return out
}

// Export returns the lines in their persisted form.
func (s *Store) Export() []SavedLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SavedLine, len(s.entries))
	for i, e := range s.entries {
		sel := e.sel
		sel.Customization = sel.Customization.Clone()
		out[i] = SavedLine{ID: e.id, Selection: sel}
	}
	return out
}

// Restore replaces the cart contents with previously exported lines.
// Invalid lines are skipped and equivalent lines are merged.
func (s *Store) Restore(lines []SavedLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	for _, l := range lines {
		if l.ID == "" || l.Selection.validate() != nil {
			continue
		}
		sel := l.Selection
		sel.Customization = Normalize(sel.Customization)
		key := StructuralKey(sel.FoodID, sel.Customization)
		if e := s.findKey(key); e != nil {
			e.sel.Quantity += sel.Quantity
			continue
		}
		s.entries = append(s.entries, &entry{id: l.ID, key: key, sel: sel})
	}
}

func (s *Store) view(e *entry) Line {
	unit := UnitPrice(s.catalog, e.sel.BasePrice, e.sel.Customization)
	return Line{
		ID:            e.id,
		FoodID:        e.sel.FoodID,
		Name:          e.sel.Name,
		BasePrice:     e.sel.BasePrice,
		Quantity:      e.sel.Quantity,
		ImageURL:      e.sel.ImageURL,
		Customization: e.sel.Customization.Clone(),
		UnitPrice:     unit,
		Total:         unit.Mul(decimal.NewFromInt(int64(e.sel.Quantity))),
	}
}

func (s *Store) index(id string) int {
	for i, e := range s.entries {
		if e.id == id {
			return i
		}
	}
	return -1
}

func (s *Store) findKey(key string) *entry {
	for _, e := range s.entries {
		if e.key == key {
			return e
		}
	}
	return nil
}

func (s *Store) removeAt(i int) {
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
}
