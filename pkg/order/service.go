package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/metrics"
	"github.com/example/foodcart/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Filter narrows an order query. Zero values match everything. Results are
// always ordered newest first by creation time.
type Filter struct {
	UserID   string
	Statuses []models.OrderStatus
	Limit    int
}

func (f Filter) Matches(o *models.Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if o.Status == s {
			return true
		}
	}
	return false
}

// Repository is the order document store. Implementations return ErrNotFound
// for unknown ids and ErrStatusConflict when a conditional update loses.
type Repository interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	Query(ctx context.Context, f Filter) ([]*models.Order, error)
	// CompareAndSetStatus sets status to `to` only if it is currently `from`.
	CompareAndSetStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (*models.Order, error)
}

// Publisher fans out order changes to subscribers.
type Publisher interface {
	Publish(ctx context.Context, change models.OrderChange) error
}

// HistoryEntry is one line of an order's status history. From is empty for
// the creation entry.
type HistoryEntry struct {
	OrderID   string             `json:"order_id"`
	UserID    string             `json:"user_id"`
	From      models.OrderStatus `json:"from,omitempty"`
	To        models.OrderStatus `json:"to"`
	ActorID   string             `json:"actor_id"`
	ActorRole auth.Role          `json:"actor_role"`
	At        time.Time          `json:"at"`
}

// History is the append-only status history of orders.
type History interface {
	Record(ctx context.Context, e HistoryEntry) error
	History(ctx context.Context, orderID string, limit int64) ([]HistoryEntry, error)
}

// Payment describes how the order was settled at submission time.
type Payment struct {
	Status    models.PaymentStatus
	Reference string
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.OrderChange) error { return nil }

type nopHistory struct{}

func (nopHistory) Record(context.Context, HistoryEntry) error { return nil }

func (nopHistory) History(context.Context, string, int64) ([]HistoryEntry, error) { return nil, nil }

type Service struct {
	repo    Repository
	pub     Publisher
	history History
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:    repo,
		pub:     nopPublisher{},
		history: nopHistory{},
		logger:  logger.Named("order"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder turns a frozen cart snapshot into a pending order. The caller
// owns the cart and decides whether to clear it after a successful return.
func (s *Service) PlaceOrder(ctx context.Context, buyer auth.Identity, lines []models.LineSnapshot, pay Payment) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if !buyer.Authenticated() {
		return nil, ErrUnauthenticated
	}
	switch pay.Status {
	case "":
		pay.Status = models.PaymentUnpaid
	case models.PaymentUnpaid:
	case models.PaymentPaid:
		if pay.Reference == "" {
			return nil, fmt.Errorf("%w: paid order without a reference", ErrInvalidPayment)
		}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPayment, pay.Status)
	}

	items := make([]models.LineSnapshot, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		if l.FoodID == "" || l.Quantity < 1 || !l.UnitPrice.IsPositive() {
			return nil, fmt.Errorf("%w: line %d", ErrInvalidLine, i)
		}
		item := l.Clone()
		item.Total = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items[i] = item
		total = total.Add(item.Total)
	}

	now := s.now().UTC()
	o := &models.Order{
		ID:               s.newID(),
		UserID:           buyer.UserID,
		CustomerEmail:    buyer.Email,
		Items:            items,
		TotalAmount:      total,
		Status:           models.StatusPending,
		PaymentStatus:    pay.Status,
		PaymentReference: pay.Reference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		s.logger.Error("Failed to create order", zap.String("user_id", buyer.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.metrics.OrderPlaced(string(o.PaymentStatus))
	s.logger.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("total", o.TotalAmount.StringFixed(2)),
		zap.String("payment_status", string(o.PaymentStatus)),
	)
	s.afterChange(ctx, o, "", buyer)
	return o.Clone(), nil
}

// AdvanceStatus moves an order to target on behalf of staff.
func (s *Service) AdvanceStatus(ctx context.Context, actor auth.Identity, orderID string, target models.OrderStatus) (*models.Order, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return s.transition(ctx, actor, orderID, target, nil)
}

// CancelOrder cancels an order. Staff may cancel anything not yet ready;
// a customer may only withdraw their own pending order.
func (s *Service) CancelOrder(ctx context.Context, actor auth.Identity, orderID string) (*models.Order, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var check func(*models.Order) error
	if !actor.IsStaff() {
		check = func(o *models.Order) error {
			if o.UserID != actor.UserID {
				return ErrForbidden
			}
			return nil
		}
	}
	return s.transition(ctx, actor, orderID, models.StatusCancelled, check)
}

func (s *Service) transition(ctx context.Context, actor auth.Identity, orderID string, target models.OrderStatus, check func(*models.Order) error) (*models.Order, error) {
	current, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(current); err != nil {
			return nil, err
		}
	}
	role := actor.Role
	if role != auth.RoleStaff {
		role = auth.RoleCustomer
	}
	if err := CanTransition(current.Status, target, role); err != nil {
		return nil, err
	}

	updated, err := s.repo.CompareAndSetStatus(ctx, orderID, current.Status, target, s.now().UTC())
	switch {
	case errors.Is(err, ErrStatusConflict):
		s.metrics.TransitionConflict()
		s.logger.Warn("Lost status update race",
			zap.String("order_id", orderID),
			zap.String("from", string(current.Status)),
			zap.String("to", string(target)),
		)
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	case errors.Is(err, ErrNotFound):
		return nil, err
	case err != nil:
		s.logger.Error("Failed to update order status", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.metrics.Transition(string(current.Status), string(target))
	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
		zap.String("actor", actor.UserID),
	)
	s.afterChange(ctx, updated, current.Status, actor)
	return updated.Clone(), nil
}

// GetOrder returns one order. Customers can only read their own orders.
func (s *Service) GetOrder(ctx context.Context, actor auth.Identity, orderID string) (*models.Order, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && o.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListOrders queries orders newest first. A customer's filter is always
// pinned to their own user id.
func (s *Service) ListOrders(ctx context.Context, actor auth.Identity, f Filter) ([]*models.Order, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !actor.IsStaff() {
		f.UserID = actor.UserID
	}
	orders, err := s.repo.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return orders, nil
}

// OrderHistory returns the recorded status changes of an order, oldest first.
func (s *Service) OrderHistory(ctx context.Context, actor auth.Identity, orderID string) ([]HistoryEntry, error) {
	if _, err := s.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	entries, err := s.history.History(ctx, orderID, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return entries, nil
}

func (s *Service) get(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return o, nil
}

// afterChange records history and publishes the change. Both are best effort:
// the order itself is already durable.
func (s *Service) afterChange(ctx context.Context, o *models.Order, from models.OrderStatus, actor auth.Identity) {
	entry := HistoryEntry{
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      from,
		To:        o.Status,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		At:        o.UpdatedAt,
	}
	if err := s.history.Record(ctx, entry); err != nil {
		s.logger.Warn("Failed to record status history", zap.String("order_id", o.ID), zap.Error(err))
	}
	change := models.OrderChange{OrderID: o.ID, UserID: o.UserID, Status: o.Status, At: o.UpdatedAt}
	if err := s.pub.Publish(ctx, change); err != nil {
		s.logger.Warn("Failed to publish order change", zap.String("order_id", o.ID), zap.Error(err))
	}
}
