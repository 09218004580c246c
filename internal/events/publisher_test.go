package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dukerupert/budgetcompass/internal/model"
	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	exchange, key string
	msg           amqp091.Publishing
	hasDeadline   bool
}

type fakeChannel struct {
	sent    []published
	failErr error
	closed  bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.failErr != nil {
		return f.failErr
	}
	_, ok := ctx.Deadline()
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg, hasDeadline: ok})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher(ch *fakeChannel) *AMQPPublisher {
	return &AMQPPublisher{
		channel:  ch,
		exchange: "budgetcompass",
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testTransaction() *model.Transaction {
	return &model.Transaction{
		ID:          "t1",
		HouseholdID: "h1",
		Category:    "food",
		Amount:      model.Money(4250),
		Date:        model.NewDate(2024, 3, 12),
	}
}

func TestAMQPPublisherTransactionCreated(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch)

	if err := p.TransactionCreated(context.Background(), testTransaction()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(ch.sent))
	}
	got := ch.sent[0]
	if got.exchange != "budgetcompass" || got.key != RoutingTransactionCreated {
		t.Errorf("exchange, key = %q, %q", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" {
		t.Errorf("content type = %q", got.msg.ContentType)
	}
	if got.msg.DeliveryMode != amqp091.Persistent {
		t.Errorf("delivery mode = %d, want persistent", got.msg.DeliveryMode)
	}
	if !got.hasDeadline {
		t.Error("publish should run with a timeout")
	}

	msg, err := TransactionCreatedMessageFromJSON(got.msg.Body)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if msg.TransactionID != "t1" || msg.HouseholdID != "h1" || msg.AmountCents != 4250 || msg.Date != "2024-03-12" {
		t.Errorf("message = %+v", msg)
	}
}

func TestAMQPPublisherPublishError(t *testing.T) {
	brokerErr := errors.New("channel/connection is not open")
	p := newTestPublisher(&fakeChannel{failErr: brokerErr})

	err := p.TransactionCreated(context.Background(), testTransaction())
	if !errors.Is(err, brokerErr) {
		t.Fatalf("err = %v, want wrapped broker error", err)
	}
	if !strings.Contains(err.Error(), "publish message") {
		t.Errorf("err = %q, want publish context", err)
	}
}

func TestAMQPPublisherClose(t *testing.T) {
	ch := &fakeChannel{}
	if err := newTestPublisher(ch).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !ch.closed {
		t.Error("channel not closed")
	}
}

func TestNewAMQPPublisherBadURL(t *testing.T) {
	_, err := NewAMQPPublisher("http://localhost:5672/", "budgetcompass", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected error for non-AMQP URL")
	}
	if !strings.Contains(err.Error(), "dial AMQP") {
		t.Errorf("err = %q, want dial context", err)
	}
}
