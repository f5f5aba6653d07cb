package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	domain "github.com/machinehub/api/internal/domain"
)

const (
	defaultNotifyWorkers    = 2
	defaultNotifyQueueSize  = 64
	defaultNotifyJobTimeout = 30 * time.Second
)

// MailMessage is an outbound mail handed to the configured mail transport.
// Attachment carries the receipt artifact bytes; json encodes them base64 so
// the Pub/Sub relay can forward them unchanged.
type MailMessage struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentName string `json:"attachmentName,omitempty"`
	Attachment     []byte `json:"attachment,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
}

// Mailer delivers customer-facing mail.
type Mailer interface {
	SendMail(ctx context.Context, msg MailMessage) (string, error)
}

// OrderAlertMessage is the payload published to the business alert channel.
type OrderAlertMessage struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	OwnerID     string    `json:"ownerId"`
	Event       string    `json:"event"`
	Status      string    `json:"status"`
	GrandTotal  int64     `json:"grandTotal"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// AlertPublisher publishes order lifecycle alerts for back-office consumers.
type AlertPublisher interface {
	PublishOrderAlert(ctx context.Context, msg OrderAlertMessage) (string, error)
}

// NotificationDispatcherDeps bundles collaborators required to construct the dispatcher.
type NotificationDispatcherDeps struct {
	Mailer            Mailer
	Alerts            AlertPublisher
	BusinessRecipient string
	Workers           int
	QueueSize         int
	JobTimeout        time.Duration
	Clock             func() time.Time
	Logger            func(ctx context.Context, event string, fields map[string]any)
}

type notificationEvent int

const (
	eventStatusChanged notificationEvent = iota
	eventPlaced
	eventPaymentConfirmed
)

type notificationJob struct {
	event    notificationEvent
	order    domain.Order
	previous domain.FulfillmentStatus
}

type notificationDispatcher struct {
	mailer    Mailer
	alerts    AlertPublisher
	recipient string
	timeout   time.Duration
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)

	jobs      chan notificationJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ OrderNotifier = (*notificationDispatcher)(nil)

// NewNotificationDispatcher starts a bounded worker pool that renders receipts
// and dispatches order notifications. Enqueueing never blocks the caller; when
// the queue is full the event is dropped and logged.
func NewNotificationDispatcher(deps NotificationDispatcherDeps) (OrderNotifier, error) {
	if deps.Mailer == nil {
		return nil, errors.New("notification dispatcher: mailer is required")
	}

	workers := deps.Workers
	if workers <= 0 {
		workers = defaultNotifyWorkers
	}
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = defaultNotifyQueueSize
	}
	timeout := deps.JobTimeout
	if timeout <= 0 {
		timeout = defaultNotifyJobTimeout
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	d := &notificationDispatcher{
		mailer:    deps.Mailer,
		alerts:    deps.Alerts,
		recipient: strings.TrimSpace(deps.BusinessRecipient),
		timeout:   timeout,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		jobs:   make(chan notificationJob, queueSize),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d, nil
}

func (d *notificationDispatcher) OrderPlaced(ctx context.Context, order Order) {
	d.enqueue(ctx, notificationJob{event: eventPlaced, order: order})
}

func (d *notificationDispatcher) PaymentConfirmed(ctx context.Context, order Order) {
	d.enqueue(ctx, notificationJob{event: eventPaymentConfirmed, order: order})
}

func (d *notificationDispatcher) OrderStatusChanged(ctx context.Context, order Order, previous FulfillmentStatus) {
	d.enqueue(ctx, notificationJob{event: eventStatusChanged, order: order, previous: previous})
}

func (d *notificationDispatcher) enqueue(ctx context.Context, job notificationJob) {
	select {
	case d.jobs <- job:
	default:
		d.logger(ctx, "notify.queue_full", map[string]any{
			"order_id": job.order.ID,
		})
	}
}

// Close stops accepting work and waits for in-flight jobs up to the context deadline.
func (d *notificationDispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		close(d.jobs)
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *notificationDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		// Detached from the request context so a finished request cannot
		// cancel an in-flight dispatch.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		d.process(ctx, job)
		cancel()
	}
}

func (d *notificationDispatcher) process(ctx context.Context, job notificationJob) {
	order := job.order

	receiptPath, body, err := renderReceiptFile(order)
	if err != nil {
		d.logger(ctx, "notify.receipt_render_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
	if receiptPath != "" {
		defer func() {
			if removeErr := os.Remove(receiptPath); removeErr != nil {
				d.logger(ctx, "notify.receipt_cleanup_failed", map[string]any{
					"order_id": order.ID,
					"path":     receiptPath,
					"error":    removeErr.Error(),
				})
			}
		}()
	}

	// The staged file is the artifact of record; attach what is on disk,
	// not the in-memory buffer.
	var artifact []byte
	attachmentName := ""
	if receiptPath != "" {
		artifact, err = os.ReadFile(receiptPath)
		if err != nil {
			d.logger(ctx, "notify.receipt_read_failed", map[string]any{
				"order_id": order.ID,
				"path":     receiptPath,
				"error":    err.Error(),
			})
			artifact = nil
		}
	}
	if len(artifact) > 0 {
		attachmentName = "receipt-" + order.OrderNumber + ".txt"
	}

	subject := mailSubject(order, job)
	if body == "" {
		body = fmt.Sprintf("Order %s is now %s.", order.OrderNumber, order.FulfillmentStatus)
	}

	if _, err := d.mailer.SendMail(ctx, MailMessage{
		To:             order.Contact.Email,
		Subject:        subject,
		Body:           body,
		AttachmentName: attachmentName,
		Attachment:     artifact,
		OrderID:        order.ID,
	}); err != nil {
		d.logger(ctx, "notify.mail_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}

	if job.event == eventPlaced && d.recipient != "" {
		if _, err := d.mailer.SendMail(ctx, MailMessage{
			To:      d.recipient,
			Subject: fmt.Sprintf("New order %s", order.OrderNumber),
			Body:    body,
			OrderID: order.ID,
		}); err != nil {
			d.logger(ctx, "notify.business_mail_failed", map[string]any{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	if d.alerts == nil {
		return
	}
	event := "order.status_changed"
	switch job.event {
	case eventPlaced:
		event = "order.placed"
	case eventPaymentConfirmed:
		event = "order.payment_confirmed"
	}
	if _, err := d.alerts.PublishOrderAlert(ctx, OrderAlertMessage{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OwnerID:     order.OwnerID,
		Event:       event,
		Status:      string(order.FulfillmentStatus),
		GrandTotal:  order.Totals.GrandTotal,
		Currency:    order.Currency,
		OccurredAt:  d.clock(),
	}); err != nil {
		d.logger(ctx, "notify.alert_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

func mailSubject(order Order, job notificationJob) string {
	switch job.event {
	case eventPlaced:
		return fmt.Sprintf("Order %s confirmed", order.OrderNumber)
	case eventPaymentConfirmed:
		return fmt.Sprintf("Payment received for order %s", order.OrderNumber)
	}
	switch order.FulfillmentStatus {
	case domain.FulfillmentCancelled:
		return fmt.Sprintf("Order %s cancelled", order.OrderNumber)
	case domain.FulfillmentDelivered:
		return fmt.Sprintf("Order %s delivered", order.OrderNumber)
	default:
		return fmt.Sprintf("Order %s update: %s", order.OrderNumber, order.FulfillmentStatus)
	}
}

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": formatMinorUnits,
}).Parse(`Order {{.OrderNumber}}
Placed {{.PlacedAt.Format "2006-01-02 15:04"}} UTC

Ship to: {{.Contact.Name}}
{{.ShippingAddress.Line1}}{{if .ShippingAddress.Line2}}
{{.ShippingAddress.Line2}}{{end}}
{{.ShippingAddress.City}} {{.ShippingAddress.PostalCode}}, {{.ShippingAddress.Country}}

Items:
{{- range .Items}}
  {{.Name}} x{{.Quantity}} @ {{money .UnitPrice}} = {{money .LineTotal}}
{{- end}}

Subtotal:  {{money .Totals.Subtotal}}
Tax:       {{money .Totals.Tax}}
Shipping:  {{money .Totals.ShippingFee}}
Total:     {{money .Totals.GrandTotal}} {{.Currency}}

Payment: {{.Payment.Method}} ({{.Payment.Status}})
Status:  {{.FulfillmentStatus}}
Expected delivery by {{.ExpectedDeliveryAt.Format "2006-01-02"}}
`))

// renderReceiptFile renders the receipt to a transient file and returns its
// path together with the rendered body. The caller removes the file once the
// dispatch attempt has finished.
func renderReceiptFile(order domain.Order) (string, string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, order); err != nil {
		return "", "", fmt.Errorf("render receipt: %w", err)
	}

	file, err := os.CreateTemp("", "receipt-"+order.OrderNumber+"-*.txt")
	if err != nil {
		return "", buf.String(), fmt.Errorf("create receipt file: %w", err)
	}
	path := file.Name()
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return path, buf.String(), fmt.Errorf("write receipt file: %w", err)
	}
	if err := file.Close(); err != nil {
		return path, buf.String(), fmt.Errorf("close receipt file: %w", err)
	}
	return path, buf.String(), nil
}

func formatMinorUnits(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
