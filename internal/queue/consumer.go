package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// NotificationLog is where the consumer appends one line per notification.
// Email delivery is owned by another service; the log stands in for it.
var NotificationLog = filepath.Join("logs", "notifications.log")

// StartNotificationConsumer connects to RabbitMQ, declares the durable
// auction.events queue and consumes it until ctx is cancelled.  Broker
// failures trigger a reconnect with exponential backoff capped at 30s.
// Messages that cannot be handled are rejected without requeue.
func StartNotificationConsumer(ctx context.Context, url string) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			utils.Warn("notification consumer: dial failed", map[string]any{"error": err.Error(), "retry_in": backoff.String()})
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		utils.Warn("notification consumer: consume loop ended, reconnecting", map[string]any{"error": err.Error()})
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		utils.Warn("notification consumer: set QoS failed", map[string]any{"error": err.Error()})
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := appendNotification(d.Body); err != nil {
				utils.Error("notification consumer: handle message failed", map[string]any{"error": err.Error()})
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func appendNotification(body []byte) error {
	if err := os.MkdirAll(filepath.Dir(NotificationLog), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(NotificationLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return handleMessage(body, f)
}

// handleMessage decodes one event and writes its notification line to w.
// Event types that nobody is notified about are skipped.
func handleMessage(body []byte, w io.Writer) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line, err := describe(ev)
	if err != nil {
		return err
	}
	if line == "" {
		return nil
	}
	_, err = fmt.Fprintf(w, "[%s] %s | listing_id=%s\n", ev.OccurredAt.Format(time.RFC3339), line, ev.ListingID)
	return err
}

func describe(ev Event) (string, error) {
	switch ev.Type {
	case TypeBidOutbid:
		var p BidOutbid
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", ev.Type, err)
		}
		return fmt.Sprintf("Outbid | to=%s | your_bid=%s | new_bid=%s", p.BidderID, p.Amount, p.NewAmount), nil
	case TypeAuctionSettled:
		var p AuctionSettled
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", ev.Type, err)
		}
		switch {
		case p.WinnerID != "" && p.Amount != nil && p.TransactionID != "":
			return fmt.Sprintf("Auction won | to=%s,%s | amount=%s | transaction_id=%s", p.WinnerID, p.SellerID, p.Amount, p.TransactionID), nil
		case p.DecisionDeadline != nil:
			return fmt.Sprintf("Reserve not met | to=%s | decide_by=%s", p.SellerID, p.DecisionDeadline.Format(time.RFC3339)), nil
		default:
			return fmt.Sprintf("Auction ended %s | to=%s", p.Status, p.SellerID), nil
		}
	case TypeBidRetracted:
		var p BidRetracted
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", ev.Type, err)
		}
		return fmt.Sprintf("Bid retracted | bidder=%s | current_bid=%s", p.BidderID, p.CurrentBid), nil
	case TypeBidPlaced, TypeAuctionExtended:
		return "", nil
	}
	return "", fmt.Errorf("unknown event type %q", ev.Type)
}
