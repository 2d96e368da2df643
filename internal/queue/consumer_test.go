package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackfiller struct {
	orders   []uint64
	packages []uint64
	created  bool
	err      error
}

func (f *fakeBackfiller) EnsureOrderInvoice(_ context.Context, id uint64) (bool, error) {
	f.orders = append(f.orders, id)
	return f.created, f.err
}

func (f *fakeBackfiller) EnsureMembershipInvoice(_ context.Context, id uint64) (bool, error) {
	f.packages = append(f.packages, id)
	return f.created, f.err
}

func newTestConsumer(t *testing.T, b InvoiceBackfiller) *Consumer {
	t.Helper()
	c := NewConsumer("amqp://unused", b, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.AuditPath = filepath.Join(t.TempDir(), "logs", "events.log")
	return c
}

func TestHandleMessage(t *testing.T) {
	t.Run("order event backfills and audits", func(t *testing.T) {
		b := &fakeBackfiller{created: true}
		c := newTestConsumer(t, b)
		body := []byte(`{"order_id":42,"order_number":"ORD-20250101-ABC123","user_id":7,"item_count":2,"total_amount":"250000","created_at":"2025-01-01T10:00:00Z"}`)

		require.NoError(t, c.HandleMessage(context.Background(), OrderCreatedQueue, body))
		assert.Equal(t, []uint64{42}, b.orders)

		data, err := os.ReadFile(c.AuditPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "order_number=ORD-20250101-ABC123")
		assert.Contains(t, string(data), "invoice_backfilled=true")
	})

	t.Run("package event", func(t *testing.T) {
		b := &fakeBackfiller{}
		c := newTestConsumer(t, b)
		body := []byte(`{"member_package_id":5,"user_id":7,"package_id":1,"package_name":"Gold","price_paid":"500000"}`)

		require.NoError(t, c.HandleMessage(context.Background(), MemberPackagePurchasedQueue, body))
		assert.Equal(t, []uint64{5}, b.packages)
		data, err := os.ReadFile(c.AuditPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), `package="Gold"`)
	})

	t.Run("backfill error is returned", func(t *testing.T) {
		c := newTestConsumer(t, &fakeBackfiller{err: errors.New("db down")})
		err := c.HandleMessage(context.Background(), OrderCreatedQueue, []byte(`{"order_id":1}`))
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("bad payload", func(t *testing.T) {
		c := newTestConsumer(t, &fakeBackfiller{})
		assert.Error(t, c.HandleMessage(context.Background(), OrderCreatedQueue, []byte("{")))
	})

	t.Run("unknown queue", func(t *testing.T) {
		c := newTestConsumer(t, &fakeBackfiller{})
		assert.Error(t, c.HandleMessage(context.Background(), "nope", []byte("{}")))
	})
}

func TestForwardStopsWhenLoopEnds(t *testing.T) {
	msgs := make(chan amqp.Delivery, 2)
	msgs <- amqp.Delivery{Body: []byte(`{"order_id":1}`)}
	msgs <- amqp.Delivery{Body: []byte(`{"order_id":2}`)}
	merged := make(chan delivery)
	done := make(chan struct{})

	exited := make(chan struct{})
	go func() {
		forward(done, OrderCreatedQueue, msgs, merged)
		close(exited)
	}()

	d := <-merged
	assert.Equal(t, OrderCreatedQueue, d.queue)
	assert.JSONEq(t, `{"order_id":1}`, string(d.msg.Body))

	// nobody reads merged any more; the forwarder is blocked on the second message
	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("forwarder still running after the consume loop ended")
	}
}

func TestForwardStopsWhenQueueCloses(t *testing.T) {
	msgs := make(chan amqp.Delivery)
	close(msgs)
	exited := make(chan struct{})
	go func() {
		forward(make(chan struct{}), MemberPackagePurchasedQueue, msgs, make(chan delivery))
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not return on a closed delivery channel")
	}
}
