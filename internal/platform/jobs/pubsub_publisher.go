package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/machinehub/api/internal/services"
)

// PubSubMailPublisher hands receipt mail off to a Pub/Sub topic consumed by the
// mail relay.
type PubSubMailPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubMailPublisher constructs a Pub/Sub backed mail publisher.
func NewPubSubMailPublisher(topic *pubsub.Topic) (*PubSubMailPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub mail publisher: topic is required")
	}
	return &PubSubMailPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// SendMail enqueues the mail message on the configured topic.
func (p *PubSubMailPublisher) SendMail(ctx context.Context, message services.MailMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub mail publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal mail message: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "to", message.To)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish mail message: %w", err)
	}
	return id, nil
}

var _ services.Mailer = (*PubSubMailPublisher)(nil)

// PubSubAlertPublisher publishes order alerts to a Pub/Sub topic consumed by
// back-office tooling.
type PubSubAlertPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubAlertPublisher constructs a Pub/Sub backed alert publisher.
func NewPubSubAlertPublisher(topic *pubsub.Topic) (*PubSubAlertPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub alert publisher: topic is required")
	}
	return &PubSubAlertPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderAlert enqueues the alert message on the configured topic.
func (p *PubSubAlertPublisher) PublishOrderAlert(ctx context.Context, message services.OrderAlertMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub alert publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal order alert: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)
	setAttr(attrs, "event", message.Event)
	setAttr(attrs, "status", message.Status)
	setAttr(attrs, "grandTotal", strconv.FormatInt(message.GrandTotal, 10))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order alert: %w", err)
	}
	return id, nil
}

var _ services.AlertPublisher = (*PubSubAlertPublisher)(nil)

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
