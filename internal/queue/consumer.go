package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// InvoiceBackfiller creates the invoice of an order or member package when
// it does not exist yet.  It reports whether an invoice was created.
type InvoiceBackfiller interface {
	EnsureOrderInvoice(ctx context.Context, orderID uint64) (bool, error)
	EnsureMembershipInvoice(ctx context.Context, memberPackageID uint64) (bool, error)
}

// Consumer listens on the order.created and member_package.purchased
// queues.  For every event it makes sure the matching invoice exists and
// appends one line to the audit log.
type Consumer struct {
	url      string
	invoices InvoiceBackfiller
	log      *slog.Logger
	// AuditPath is the file events are appended to; empty disables it.
	AuditPath string
}

func NewConsumer(url string, invoices InvoiceBackfiller, logger *slog.Logger) *Consumer {
	return &Consumer{
		url:       url,
		invoices:  invoices,
		log:       logger,
		AuditPath: filepath.Join("logs", "events.log"),
	}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Lost
// connections are redialled with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("event-consumer: failed to dial broker", "err", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("event-consumer: consume loop ended; reconnecting", "err", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type delivery struct {
	queue string
	msg   amqp.Delivery
}

// forward tags deliveries from one queue and hands them to merged until msgs
// closes or done is closed.
func forward(done <-chan struct{}, q string, msgs <-chan amqp.Delivery, merged chan<- delivery) {
	for m := range msgs {
		select {
		case merged <- delivery{queue: q, msg: m}:
		case <-done:
			return
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("event-consumer: set QoS failed", "err", err)
	}

	// done stops the forwarders when this loop returns, so a reconnect does
	// not leave them blocked on merged.
	done := make(chan struct{})
	defer close(done)

	merged := make(chan delivery)
	for _, q := range []string{OrderCreatedQueue, MemberPackagePurchasedQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		go forward(done, q, msgs, merged)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-closed:
			if e == nil {
				return errors.New("connection closed")
			}
			return e
		case d := <-merged:
			if err := c.HandleMessage(ctx, d.queue, d.msg.Body); err != nil {
				c.log.Error("event-consumer: handle message failed", "queue", d.queue, "err", err)
				_ = d.msg.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.msg.Ack(false)
		}
	}
}

// HandleMessage processes one event body received on queue.
func (c *Consumer) HandleMessage(ctx context.Context, queue string, body []byte) error {
	var line string
	switch queue {
	case OrderCreatedQueue:
		var ev OrderCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		created, err := c.invoices.EnsureOrderInvoice(ctx, ev.OrderID)
		if err != nil {
			return fmt.Errorf("ensure order invoice: %w", err)
		}
		if created {
			c.log.Info("event-consumer: backfilled shop invoice", "order_id", ev.OrderID)
		}
		line = fmt.Sprintf("[%s] Order created | order_id=%d | order_number=%s | user_id=%d | items=%d | total=%s | invoice_backfilled=%t\n",
			ev.CreatedAt, ev.OrderID, ev.OrderNumber, ev.UserID, ev.ItemCount, ev.TotalAmount, created)
	case MemberPackagePurchasedQueue:
		var ev MemberPackagePurchasedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		created, err := c.invoices.EnsureMembershipInvoice(ctx, ev.MemberPackageID)
		if err != nil {
			return fmt.Errorf("ensure membership invoice: %w", err)
		}
		if created {
			c.log.Info("event-consumer: backfilled membership invoice", "member_package_id", ev.MemberPackageID)
		}
		line = fmt.Sprintf("[%s] Package purchased | member_package_id=%d | user_id=%d | package=%q | paid=%s | period=%s..%s | invoice_backfilled=%t\n",
			ev.PurchasedAt, ev.MemberPackageID, ev.UserID, ev.PackageName, ev.PricePaid, ev.StartDate, ev.EndDate, created)
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	return c.appendAudit(line)
}

func (c *Consumer) appendAudit(line string) error {
	if c.AuditPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.AuditPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.AuditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
