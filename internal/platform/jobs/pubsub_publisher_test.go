package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/machinehub/api/internal/services"
)

func newTestPubSubClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPubSubMailPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestPubSubClient(t)

	topic, err := client.CreateTopic(ctx, "order-mail")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubMailPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubMailPublisher: %v", err)
	}

	msg := services.MailMessage{
		To:      "orders@machinehub.example",
		Subject: "Order MH-20250305-A1B2C3D4 received",
		Body:    "Receipt body",
		OrderID: "order-1",
	}

	if _, err := publisher.SendMail(ctx, msg); err != nil {
		t.Fatalf("SendMail: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.MailMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.To != msg.To || payload.Subject != msg.Subject {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["orderId"]; attr != "order-1" {
		t.Fatalf("expected orderId attribute, got %q", attr)
	}
}

func TestPubSubAlertPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestPubSubClient(t)

	topic, err := client.CreateTopic(ctx, "order-alerts")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubAlertPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubAlertPublisher: %v", err)
	}

	msg := services.OrderAlertMessage{
		OrderID:     "order-1",
		OrderNumber: "MH-20250305-A1B2C3D4",
		OwnerID:     "user-1",
		Event:       "order.placed",
		Status:      "placed",
		GrandTotal:  236000,
		Currency:    "INR",
		OccurredAt:  time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishOrderAlert(ctx, msg); err != nil {
		t.Fatalf("PublishOrderAlert: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderAlertMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderNumber != msg.OrderNumber || payload.Event != msg.Event {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["grandTotal"]; attr != "236000" {
		t.Fatalf("expected grandTotal attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["event"]; attr != "order.placed" {
		t.Fatalf("expected event attribute, got %q", attr)
	}
}

func TestNewPublishersRequireTopic(t *testing.T) {
	if _, err := NewPubSubMailPublisher(nil); err == nil {
		t.Fatal("expected error for nil mail topic")
	}
	if _, err := NewPubSubAlertPublisher(nil); err == nil {
		t.Fatal("expected error for nil alert topic")
	}
}
