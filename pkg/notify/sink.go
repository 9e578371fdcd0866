package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sink delivers notifications to customers.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, n Notification) error {
	s.logger.Info("Sending notification",
		zap.String("recipient", n.UserID),
		zap.String("order_id", n.OrderID),
		zap.String("title", n.Title),
		zap.String("message", n.Message))
	return nil
}

// Inbox stores notifications where customers can fetch them later.
type Inbox interface {
	PushNotification(ctx context.Context, userID string, n interface{}) error
}

// InboxSink writes every notification to the recipient's inbox.
type InboxSink struct {
	inbox Inbox
}

func NewInboxSink(inbox Inbox) *InboxSink {
	return &InboxSink{inbox: inbox}
}

func (s *InboxSink) Send(ctx context.Context, n Notification) error {
	return s.inbox.PushNotification(ctx, n.UserID, n)
}

// MultiSink sends to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, n Notification) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
