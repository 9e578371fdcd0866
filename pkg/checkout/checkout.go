// Package checkout runs payment and order submission for a session cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/cart"
	"github.com/example/foodcart/pkg/metrics"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/order"
	"github.com/example/foodcart/pkg/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrOrderAfterPayment means the charge went through but the order could not
// be stored. The cart is left intact and the error carries the receipt.
var ErrOrderAfterPayment = errors.New("payment captured but order was not placed")

type PaymentCapturedError struct {
	Receipt payment.Receipt
	Err     error
}

func (e *PaymentCapturedError) Error() string {
	return fmt.Sprintf("%s (payment reference %s): %v", ErrOrderAfterPayment, e.Receipt.Reference, e.Err)
}

func (e *PaymentCapturedError) Unwrap() []error {
	return []error{ErrOrderAfterPayment, e.Err}
}

type Method string

const (
	MethodCard       Method = "card"
	MethodCollection Method = "collection"
)

func (m Method) Valid() bool {
	return m == MethodCard || m == MethodCollection
}

// Placer submits orders. Both order.Service and the order service client
// implement it.
type Placer interface {
	PlaceOrder(ctx context.Context, buyer auth.Identity, lines []models.LineSnapshot, pay order.Payment) (*models.Order, error)
}

type Flow struct {
	orders   Placer
	payments payment.Provider
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewFlow(orders Placer, payments payment.Provider, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		orders:   orders,
		payments: payments,
		timeout:  timeout,
		logger:   logger.Named("checkout"),
		metrics:  m,
	}
}

// Checkout places an order for everything in the cart. Card payments are
// charged first and the order is only placed once the charge succeeds. Once
// the order is stored the ordered lines leave the cart; anything added or
// edited while payment was in flight stays.
func (f *Flow) Checkout(ctx context.Context, buyer auth.Identity, store *cart.Store, method Method) (*models.Order, error) {
	if store.IsEmpty() {
		return nil, order.ErrEmptyCart
	}
	if !buyer.Authenticated() {
		return nil, order.ErrUnauthenticated
	}
	if !method.Valid() {
		return nil, fmt.Errorf("unknown payment method %q", method)
	}

	lines := store.Snapshot()
	pay := order.Payment{Status: models.PaymentUnpaid}

	var receipt *payment.Receipt
	if method == MethodCard {
		r, err := f.charge(ctx, buyer, total(lines))
		if err != nil {
			return nil, err
		}
		receipt = &r
		pay = order.Payment{Status: models.PaymentPaid, Reference: r.Reference}
	}

	o, err := f.orders.PlaceOrder(ctx, buyer, lines, pay)
	if err != nil {
		if receipt != nil {
			f.metrics.CheckoutOutcome("order_after_payment_failed")
			f.logger.Error("Order failed after payment",
				zap.String("user_id", buyer.UserID),
				zap.String("reference", receipt.Reference),
				zap.Error(err))
			return nil, &PaymentCapturedError{Receipt: *receipt, Err: err}
		}
		f.metrics.CheckoutOutcome("order_failed")
		return nil, err
	}

	store.RemoveOrdered(lines)
	f.metrics.CheckoutOutcome("placed_" + string(method))
	return o, nil
}

func (f *Flow) charge(ctx context.Context, buyer auth.Identity, amount decimal.Decimal) (payment.Receipt, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	r, err := f.payments.Charge(ctx, amount, payment.Payer{UserID: buyer.UserID, Email: buyer.Email})
	switch {
	case errors.Is(err, payment.ErrCancelled):
		f.metrics.CheckoutOutcome("payment_cancelled")
		return payment.Receipt{}, err
	case err != nil:
		f.metrics.CheckoutOutcome("payment_failed")
		if !errors.Is(err, payment.ErrFailed) {
			err = fmt.Errorf("%w: %w", payment.ErrFailed, err)
		}
		return payment.Receipt{}, err
	}
	return r, nil
}

func total(lines []models.LineSnapshot) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total)
	}
	return sum
}
