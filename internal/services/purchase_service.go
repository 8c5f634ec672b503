package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventpass/config"
	"eventpass/internal/gateway/paystack"
	"eventpass/internal/status"
	"eventpass/models"
	"eventpass/utils"

	"github.com/shopspring/decimal"
)

// platformFeeRate is the platform's cut of every ticket sale. The creator's
// connected account receives the remainder and bears the gateway fee.
var platformFeeRate = decimal.NewFromFloat(0.13)

// Inventory is the event inventory store as seen by the purchase and
// settlement services.
type Inventory interface {
	FindEvent(ctx context.Context, id string) (*models.Event, error)
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindAttendanceByReference(ctx context.Context, reference string) (*models.Attendance, error)
	HasAttendance(ctx context.Context, eventID, buyerID string) (bool, error)
	AppendAttendees(ctx context.Context, eventID string, attendees []models.Attendance) error
}

// Gateway is the external payment gateway.
type Gateway interface {
	InitializeTransaction(ctx context.Context, f *paystack.InitializeRequest) (*paystack.Session, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

type PurchaseService struct {
	store       Inventory
	gateway     Gateway
	currency    string
	callbackURL string
}

func NewPurchaseService(store Inventory, gateway Gateway, cfg *config.Config) *PurchaseService {
	return &PurchaseService{
		store:       store,
		gateway:     gateway,
		currency:    cfg.PaymentCurrency,
		callbackURL: cfg.CallbackURL,
	}
}

type InitiateRequest struct {
	EventID    string
	BuyerID    string
	UnitAmount decimal.Decimal
	Quantity   int
	Email      string
	Phone      string
}

// Initiate runs the purchase pre-checks, computes the split and requests a
// hosted checkout session. Nothing is persisted locally; the buyer either
// completes checkout (settlement commits the tickets) or abandons it.
func (s *PurchaseService) Initiate(ctx context.Context, req InitiateRequest) (*models.CheckoutSession, error) {
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	event, err := s.store.FindEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	if event.PayoutSubaccount == "" {
		return nil, status.ErrPayoutNotConfigured
	}

	buyer, err := s.store.FindUser(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}

	if err := CheckEligibility(buyer, event, time.Now()); err != nil {
		return nil, err
	}

	ticketed, err := s.store.HasAttendance(ctx, event.ID, buyer.ID)
	if err != nil {
		return nil, err
	}
	if ticketed {
		return nil, status.ErrAlreadyTicketed
	}

	// Best-effort pre-checks only; the authoritative capacity check happens
	// at settlement commit.
	remaining := event.Remaining()
	if remaining <= 0 {
		return nil, status.ErrSoldOut
	}
	if req.Quantity > remaining {
		return nil, &status.CapacityError{Remaining: remaining}
	}

	if !req.UnitAmount.IsZero() && !req.UnitAmount.Equal(event.TicketPrice) {
		return nil, status.ErrAmountMismatch
	}

	total := event.TicketPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
	totalMinor, feeMinor, _ := SplitAmounts(total)

	reference, err := utils.GeneratePaymentReference(event.ID)
	if err != nil {
		return nil, fmt.Errorf("initiate: generate reference: %w", err)
	}

	email := req.Email
	if email == "" {
		email = buyer.Email
	}

	session, err := s.gateway.InitializeTransaction(ctx, &paystack.InitializeRequest{
		Email:       email,
		Amount:      totalMinor,
		Currency:    s.currency,
		Reference:   reference,
		CallbackURL: s.callbackURL,
		Metadata: paystack.Metadata{
			EventID:   event.ID,
			BuyerID:   buyer.ID,
			Quantity:  paystack.FlexInt(req.Quantity),
			EventName: event.Name,
			BuyerName: buyer.Name,
			Phone:     req.Phone,
		},
		Subaccount:        event.PayoutSubaccount,
		TransactionCharge: feeMinor,
		Bearer:            "subaccount",
	})
	if err != nil {
		return nil, err
	}

	slog.Info("checkout session created",
		"event_id", event.ID,
		"buyer_id", buyer.ID,
		"quantity", req.Quantity,
		"amount_minor", totalMinor,
		"platform_fee_minor", feeMinor,
		"reference", session.Reference,
	)

	return &models.CheckoutSession{
		AuthorizationURL: session.AuthorizationURL,
		AccessCode:       session.AccessCode,
		Reference:        session.Reference,
	}, nil
}

// SplitAmounts converts a total to the smallest currency unit and splits it
// between the platform and the creator. Working in minor units keeps the
// split exact: platformFee + creatorShare == totalMinor always.
func SplitAmounts(total decimal.Decimal) (totalMinor, platformFee, creatorShare int64) {
	totalMinor = total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	platformFee = decimal.NewFromInt(totalMinor).Mul(platformFeeRate).Round(0).IntPart()
	creatorShare = totalMinor - platformFee
	return totalMinor, platformFee, creatorShare
}
