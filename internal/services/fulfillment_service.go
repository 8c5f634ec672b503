package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"eventpass/config"
	"eventpass/models"
	"eventpass/monitoring"

	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	fulfillmentQueue = "fulfillment:queue"
	fulfillmentDead  = "fulfillment:dead"
)

// Mailer sends the ticket and invoice documents to the buyer.
type Mailer interface {
	Send(to mail.Address, subject, html string) error
}

// FulfillmentService delivers tickets after settlement. Jobs are queued in
// redis so a crashed delivery survives a restart; the worker retries each
// job a bounded number of times before parking it on the dead-letter list.
type FulfillmentService struct {
	redis       *redis.Client
	mailer      Mailer
	pubnub      *pubnub.PubNub
	maxAttempts int
	retryDelay  time.Duration
}

func NewFulfillmentService(redisClient *redis.Client, mailer Mailer, pn *pubnub.PubNub, cfg *config.Config) *FulfillmentService {
	return &FulfillmentService{
		redis:       redisClient,
		mailer:      mailer,
		pubnub:      pn,
		maxAttempts: cfg.FulfillmentMaxAttempts,
		retryDelay:  cfg.FulfillmentRetryDelay,
	}
}

// Dispatch queues one delivery job. Settlement calls this after commit and
// treats failure as non-fatal.
func (s *FulfillmentService) Dispatch(ctx context.Context, job *models.FulfillmentJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("fulfillment: json.Marshal: %w", err)
	}

	if err := s.redis.LPush(ctx, fulfillmentQueue, payload).Err(); err != nil {
		return fmt.Errorf("fulfillment: lpush: %w", err)
	}

	slog.Info("fulfillment job queued", "reference", job.Reference, "buyer_id", job.BuyerID)
	return nil
}

// ProcessJobs is the delivery worker loop. It blocks on the queue until the
// context is cancelled.
func (s *FulfillmentService) ProcessJobs(ctx context.Context) {
	slog.Info("fulfillment worker started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("fulfillment worker stopped")
			return
		default:
		}

		result, err := s.redis.BRPop(ctx, 5*time.Second, fulfillmentQueue).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			slog.Error("fulfillment queue read failed", "err", err)
			time.Sleep(time.Second)
			continue
		}

		var job models.FulfillmentJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			slog.Error("fulfillment job unreadable, discarding", "err", err)
			monitoring.RecordFulfillment("malformed")
			continue
		}

		if err := s.deliver(ctx, &job); err != nil {
			s.retry(ctx, &job, err)
			continue
		}

		monitoring.RecordFulfillment("delivered")
		slog.Info("fulfillment delivered",
			"reference", job.Reference,
			"buyer_id", job.BuyerID,
			"tickets", len(job.TicketNumbers),
			"attempts", job.Attempts+1,
		)
	}
}

func (s *FulfillmentService) retry(ctx context.Context, job *models.FulfillmentJob, cause error) {
	job.Attempts++

	if job.Attempts >= s.maxAttempts {
		slog.Error("fulfillment exhausted retries, dead-lettering",
			"reference", job.Reference,
			"attempts", job.Attempts,
			"err", cause,
		)
		monitoring.RecordFulfillment("dead_lettered")
		if payload, err := json.Marshal(job); err == nil {
			s.redis.LPush(ctx, fulfillmentDead, payload)
		}
		return
	}

	slog.Warn("fulfillment failed, requeueing",
		"reference", job.Reference,
		"attempt", job.Attempts,
		"err", cause,
	)
	monitoring.RecordFulfillment("retried")

	payload, err := json.Marshal(job)
	if err != nil {
		return
	}

	// Requeue after the delay without stalling the worker loop behind one
	// failing job. On shutdown the job goes straight back to the queue so it
	// survives the restart.
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(s.retryDelay):
		}
		s.redis.LPush(context.Background(), fulfillmentQueue, payload)
	}()
}

// deliver emails the ticket and invoice and pushes a realtime notification
// to the buyer's channel.
func (s *FulfillmentService) deliver(ctx context.Context, job *models.FulfillmentJob) error {
	html := RenderTicketEmail(job) + RenderInvoice(job)

	if err := s.mailer.Send(
		mail.Address{Name: job.BuyerName, Address: job.BuyerEmail},
		fmt.Sprintf("Your tickets for %s", job.EventName),
		html,
	); err != nil {
		return fmt.Errorf("fulfillment: send mail: %w", err)
	}

	if s.pubnub != nil {
		_, _, err := s.pubnub.Publish().
			Channel("user-" + job.BuyerID).
			Message(map[string]any{
				"type":           "tickets_issued",
				"reference":      job.Reference,
				"event_id":       job.EventID,
				"event_name":     job.EventName,
				"ticket_numbers": job.TicketNumbers,
				"quantity":       job.Quantity,
			}).
			Execute()
		if err != nil {
			// The email already went out; a missed push is not worth a
			// duplicate delivery.
			slog.Warn("fulfillment push failed", "reference", job.Reference, "err", err)
		}
	}

	return nil
}

// RenderTicketEmail builds the ticket HTML handed to the buyer.
func RenderTicketEmail(job *models.FulfillmentJob) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<h1>%s</h1>", job.EventName)
	fmt.Fprintf(&b, "<p>%s at %s, %s</p>",
		job.EventDate.Format("Monday, 2 January 2006"),
		job.EventTime,
		job.EventLocation,
	)
	fmt.Fprintf(&b, "<p>Hi %s, your %d ticket(s) are confirmed.</p>", job.BuyerName, job.Quantity)

	b.WriteString("<ul>")
	for _, n := range job.TicketNumbers {
		fmt.Fprintf(&b, "<li><strong>%s</strong></li>", n)
	}
	b.WriteString("</ul>")

	return b.String()
}

// RenderInvoice builds the invoice HTML with the platform fee breakdown.
func RenderInvoice(job *models.FulfillmentJob) string {
	fee := job.TotalAmount.Mul(decimal.NewFromFloat(0.13)).Round(2)
	creator := job.TotalAmount.Sub(fee)

	var b strings.Builder

	fmt.Fprintf(&b, "<h2>Invoice INV-%s</h2>", job.Reference)
	b.WriteString("<table>")
	fmt.Fprintf(&b, "<tr><td>Tickets (%d)</td><td>%s</td></tr>", job.Quantity, job.TotalAmount.StringFixed(2))
	fmt.Fprintf(&b, "<tr><td>Platform fee (13%%)</td><td>%s</td></tr>", fee.StringFixed(2))
	fmt.Fprintf(&b, "<tr><td>Paid to organizer</td><td>%s</td></tr>", creator.StringFixed(2))
	fmt.Fprintf(&b, "<tr><td>Total paid</td><td>%s</td></tr>", job.TotalAmount.StringFixed(2))
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Payment reference: %s</p>", job.Reference)

	return b.String()
}
