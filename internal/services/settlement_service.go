package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventpass/config"
	"eventpass/internal/gateway/paystack"
	"eventpass/internal/status"
	"eventpass/models"
	"eventpass/monitoring"
	"eventpass/utils"

	"github.com/shopspring/decimal"
)

// Fulfiller hands settled purchases to the asynchronous delivery pipeline.
type Fulfiller interface {
	Dispatch(ctx context.Context, job *models.FulfillmentJob) error
}

type SettlementService struct {
	store      Inventory
	gateway    Gateway
	fulfiller  Fulfiller
	maxRetries int
	backoff    time.Duration
}

func NewSettlementService(store Inventory, gateway Gateway, fulfiller Fulfiller, cfg *config.Config) *SettlementService {
	return &SettlementService{
		store:      store,
		gateway:    gateway,
		fulfiller:  fulfiller,
		maxRetries: cfg.VerifyMaxRetries,
		backoff:    cfg.VerifyBackoff,
	}
}

// Settle confirms a payment with the gateway and commits the purchased
// tickets. It is safe to call more than once per reference: the first call
// commits, every later call returns ErrAlreadyProcessed. Callers never
// supply the outcome; the gateway is re-queried every time.
func (s *SettlementService) Settle(ctx context.Context, reference string) (*models.SettlementResult, error) {
	existing, err := s.store.FindAttendanceByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slog.Info("settlement skipped, reference already applied", "reference", reference)
		return nil, status.ErrAlreadyProcessed
	}

	tx, err := s.verifyWithRetry(ctx, reference)
	if err != nil {
		monitoring.RecordSettlement("gateway_error")
		return nil, err
	}

	if !tx.Paid() {
		slog.Warn("settlement rejected, transaction not successful",
			"reference", reference,
			"status", tx.Status,
		)
		monitoring.RecordSettlement("not_paid")
		return nil, &status.VerificationError{Status: tx.Status}
	}

	if err := tx.Metadata.Validate(); err != nil {
		slog.Error("settlement rejected, unusable metadata", "reference", reference, "err", err)
		monitoring.RecordSettlement("bad_metadata")
		return nil, &status.VerificationError{Status: "invalid_metadata"}
	}

	event, err := s.store.FindEvent(ctx, tx.Metadata.EventID)
	if err != nil {
		monitoring.RecordSettlement("event_missing")
		return nil, err
	}
	buyer, err := s.store.FindUser(ctx, tx.Metadata.BuyerID)
	if err != nil {
		monitoring.RecordSettlement("buyer_missing")
		return nil, err
	}

	ticketed, err := s.store.HasAttendance(ctx, event.ID, buyer.ID)
	if err != nil {
		return nil, err
	}
	if ticketed {
		monitoring.RecordSettlement("duplicate_purchase")
		return nil, status.ErrAlreadyTicketed
	}

	quantity := int(tx.Metadata.Quantity)
	if quantity < 1 {
		quantity = 1
	}
	if remaining := event.Remaining(); quantity > remaining {
		monitoring.RecordSettlement("sold_out")
		return nil, &status.CapacityError{Remaining: remaining}
	}

	now := time.Now()
	perTicket := tx.Amount.Div(decimal.NewFromInt(int64(quantity))).Round(2)

	attendees := make([]models.Attendance, 0, quantity)
	for i := 0; i < quantity; i++ {
		ticketNumber, err := utils.GenerateTicketNumber()
		if err != nil {
			return nil, fmt.Errorf("settle: generate ticket number: %w", err)
		}
		attendees = append(attendees, models.Attendance{
			EventID:          event.ID,
			BuyerID:          buyer.ID,
			TicketNumber:     ticketNumber,
			PaymentReference: reference,
			Amount:           perTicket,
			Channel:          tx.Channel,
			PaidAt:           tx.PaidAt,
			PurchaseDate:     now,
		})
	}

	if err := s.store.AppendAttendees(ctx, event.ID, attendees); err != nil {
		switch {
		case errors.Is(err, status.ErrAlreadyProcessed):
			monitoring.RecordSettlement("duplicate_reference")
		case errors.Is(err, status.ErrAlreadyTicketed):
			monitoring.RecordSettlement("duplicate_purchase")
		default:
			monitoring.RecordSettlement("commit_failed")
		}
		return nil, err
	}

	monitoring.RecordSettlement("success")
	monitoring.RecordTicketsIssued(quantity)

	ticketNumbers := make([]string, 0, quantity)
	tickets := make([]models.IssuedTicket, 0, quantity)
	for _, a := range attendees {
		ticketNumbers = append(ticketNumbers, a.TicketNumber)
		tickets = append(tickets, models.IssuedTicket{TicketNumber: a.TicketNumber, Amount: a.Amount})
	}

	job := &models.FulfillmentJob{
		Reference:     reference,
		EventID:       event.ID,
		EventName:     event.Name,
		EventDate:     event.EventDate,
		EventTime:     event.EventTime,
		EventLocation: event.Location,
		BuyerID:       buyer.ID,
		BuyerName:     buyer.Name,
		BuyerEmail:    buyer.Email,
		TicketNumbers: ticketNumbers,
		Quantity:      quantity,
		TotalAmount:   tx.Amount,
	}
	if err := s.fulfiller.Dispatch(ctx, job); err != nil {
		// Delivery is best-effort; the purchase stands regardless.
		slog.Warn("fulfillment dispatch failed", "reference", reference, "err", err)
	}

	slog.Info("settlement committed",
		"reference", reference,
		"event_id", event.ID,
		"buyer_id", buyer.ID,
		"quantity", quantity,
		"amount", tx.Amount.String(),
	)

	return &models.SettlementResult{
		Event: models.EventSummary{
			ID:        event.ID,
			Name:      event.Name,
			EventDate: event.EventDate,
			EventTime: event.EventTime,
			Location:  event.Location,
			Duration:  event.Duration,
			Thumbnail: event.Thumbnail,
		},
		Payment: models.PaymentSummary{
			Reference: reference,
			Amount:    tx.Amount,
			PaidAt:    tx.PaidAt,
			Channel:   tx.Channel,
		},
		Tickets: tickets,
	}, nil
}

// verifyWithRetry re-queries the gateway, retrying only timeouts. The
// backoff doubles between attempts.
func (s *SettlementService) verifyWithRetry(ctx context.Context, reference string) (*paystack.Transaction, error) {
	backOff := s.backoff
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("gateway verification timed out, retrying",
				"reference", reference,
				"attempt", attempt,
				"backoff", backOff.String(),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backOff):
			}
			backOff *= 2
		}

		tx, err := s.gateway.VerifyTransaction(ctx, reference)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, status.ErrGatewayTimeout) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}
