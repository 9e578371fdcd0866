// Package payment is the boundary to the external payment gateway. A charge
// either yields a receipt, is cancelled by the payer, or fails.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodcart/pkg/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrCancelled = errors.New("payment cancelled")
	ErrFailed    = errors.New("payment failed")
)

type Payer struct {
	UserID string
	Email  string
}

type Receipt struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    time.Time       `json:"paid_at"`
}

// Provider charges a payer. Charge blocks until the gateway reports an
// outcome or ctx is done.
type Provider interface {
	Charge(ctx context.Context, amount decimal.Decimal, payer Payer) (Receipt, error)
}

type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeDecline   Mode = "decline"
	ModeCancel    Mode = "cancel"
)

// Simulated stands in for the hosted payment page in development.
type Simulated struct {
	mode     Mode
	currency string
	delay    time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewSimulated(cfg config.PaymentConfig, logger *zap.Logger) (*Simulated, error) {
	mode := Mode(cfg.Mode)
	switch mode {
	case ModeSimulated, ModeDecline, ModeCancel:
	case "":
		mode = ModeSimulated
	default:
		return nil, fmt.Errorf("unknown payment mode %q", cfg.Mode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		mode:     mode,
		currency: cfg.Currency,
		logger:   logger.Named("payment"),
		now:      time.Now,
	}, nil
}

// WithDelay makes every charge take d, like a payer filling in a form.
func (s *Simulated) WithDelay(d time.Duration) *Simulated {
	s.delay = d
	return s
}

func (s *Simulated) Charge(ctx context.Context, amount decimal.Decimal, payer Payer) (Receipt, error) {
	if !amount.IsPositive() {
		return Receipt{}, fmt.Errorf("%w: amount must be positive", ErrFailed)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Receipt{}, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	switch s.mode {
	case ModeDecline:
		s.logger.Info("Payment declined", zap.String("user_id", payer.UserID))
		return Receipt{}, fmt.Errorf("%w: card declined", ErrFailed)
	case ModeCancel:
		s.logger.Info("Payment cancelled by payer", zap.String("user_id", payer.UserID))
		return Receipt{}, ErrCancelled
	}

	r := Receipt{
		Reference: "pay_" + uuid.NewString(),
		Amount:    amount,
		Currency:  s.currency,
		PaidAt:    s.now().UTC(),
	}
	s.logger.Info("Payment captured",
		zap.String("user_id", payer.UserID),
		zap.String("reference", r.Reference),
		zap.String("amount", amount.StringFixed(2)))
	return r, nil
}
