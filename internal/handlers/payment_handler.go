package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"eventpass/internal/gateway/paystack"
	"eventpass/internal/services"
	"eventpass/internal/status"
	"eventpass/internal/store"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	app               *pocketbase.PocketBase
	purchaseService   *services.PurchaseService
	settlementService *services.SettlementService
	store             *store.Store
	webhookSecret     string
}

func NewPaymentHandler(app *pocketbase.PocketBase, purchase *services.PurchaseService, settlement *services.SettlementService, store *store.Store, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		app:               app,
		purchaseService:   purchase,
		settlementService: settlement,
		store:             store,
		webhookSecret:     webhookSecret,
	}
}

// InitializePayment - Start a ticket purchase and return the hosted checkout session
func (h *PaymentHandler) InitializePayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID  string          `json:"event_id"`
		Amount   decimal.Decimal `json:"amount"`
		Quantity int             `json:"quantity"`
		Email    string          `json:"email"`
		Phone    string          `json:"phone"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}

	email := req.Email
	if email == "" {
		email = e.Auth.GetString("email")
	}

	ctx := e.Request.Context()
	session, err := h.purchaseService.Initiate(ctx, services.InitiateRequest{
		EventID:    req.EventID,
		BuyerID:    e.Auth.Id,
		UnitAmount: req.Amount,
		Quantity:   req.Quantity,
		Email:      email,
		Phone:      req.Phone,
	})
	if err != nil {
		slog.Error("h.purchaseService.Initiate()", "event_id", req.EventID, "buyer_id", e.Auth.Id, "error", err)
		return toAPIError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": "success", "data": session})
}

// VerifyPayment - Re-verify a payment with the gateway and commit the tickets
func (h *PaymentHandler) VerifyPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Reference string `json:"reference"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Reference == "" {
		return apis.NewBadRequestError("reference is required", nil)
	}

	ctx := e.Request.Context()
	result, err := h.settlementService.Settle(ctx, req.Reference)
	if err != nil {
		// A charged card with a blocked commit is not a failed payment;
		// tell the buyer where their money stands.
		switch {
		case errors.Is(err, status.ErrAlreadyTicketed):
			return apis.NewApiError(http.StatusConflict,
				"Payment received but you already hold a ticket for this event. Contact support for a refund.", nil)
		case isCapacityError(err):
			return apis.NewApiError(http.StatusConflict,
				"Payment received but the event sold out. Contact support for a refund.", nil)
		}
		slog.Error("h.settlementService.Settle()", "reference", req.Reference, "error", err)
		return toAPIError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": "success", "data": result})
}

// PaystackWebhook - Settle charge.success events pushed by the gateway
func (h *PaymentHandler) PaystackWebhook(e *core.RequestEvent) error {
	body, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("Unreadable body", err)
	}

	signature := e.Request.Header.Get("x-paystack-signature")
	if !paystack.VerifyWebhookSignature(body, signature, h.webhookSecret) {
		slog.Warn("webhook rejected, bad signature")
		return apis.NewForbiddenError("Invalid signature", nil)
	}

	var event paystack.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apis.NewBadRequestError("Invalid payload", err)
	}

	if event.Event != "charge.success" {
		return e.JSON(http.StatusOK, map[string]any{"status": "ignored"})
	}

	ctx := e.Request.Context()
	if _, err := h.settlementService.Settle(ctx, event.Data.Reference); err != nil {
		// Only retriable failures earn a retry from the gateway. Duplicates
		// and terminal guard failures are acknowledged so delivery stops.
		if errors.Is(err, status.ErrGatewayTimeout) {
			slog.Error("webhook settlement timed out", "reference", event.Data.Reference)
			return apis.NewApiError(http.StatusInternalServerError, "Settlement pending, retry", nil)
		}
		slog.Warn("webhook settlement not applied", "reference", event.Data.Reference, "error", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": "success"})
}

// MyTickets - List the authenticated buyer's tickets, newest first
func (h *PaymentHandler) MyTickets(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()
	attendances, err := h.store.FindAttendancesByBuyer(ctx, e.Auth.Id)
	if err != nil {
		slog.Error("store.FindAttendancesByBuyer()", "buyer_id", e.Auth.Id, "error", err)
		return apis.NewInternalServerError("internal error", err)
	}

	tickets := make([]map[string]any, 0, len(attendances))
	for _, a := range attendances {
		item := map[string]any{
			"ticket_number":     a.TicketNumber,
			"payment_reference": a.PaymentReference,
			"amount":            a.Amount,
			"purchase_date":     a.PurchaseDate,
			"event_id":          a.EventID,
		}
		if rec, err := h.app.FindRecordById("events", a.EventID); err == nil {
			item["event_name"] = rec.GetString("name")
			item["event_date"] = rec.GetDateTime("event_date").Time()
			item["location"] = rec.GetString("location")
		}
		tickets = append(tickets, item)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": "success", "data": tickets})
}

func isCapacityError(err error) bool {
	var ce *status.CapacityError
	return errors.As(err, &ce) || errors.Is(err, status.ErrSoldOut)
}

// toAPIError maps domain errors onto the API error taxonomy.
func toAPIError(err error) error {
	var eligibility *status.EligibilityError
	var capacity *status.CapacityError
	var verification *status.VerificationError

	switch {
	case errors.Is(err, status.ErrEventNotFound), errors.Is(err, status.ErrUserNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrPayoutNotConfigured),
		errors.Is(err, status.ErrAmountMismatch),
		errors.Is(err, status.ErrCapacityBelowSold):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrSoldOut),
		errors.Is(err, status.ErrAlreadyTicketed),
		errors.Is(err, status.ErrAlreadyProcessed):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	case errors.As(err, &capacity):
		return apis.NewApiError(http.StatusConflict, capacity.Error(), nil)
	case errors.As(err, &eligibility):
		return apis.NewForbiddenError(eligibility.Error(), nil)
	case errors.As(err, &verification):
		return apis.NewBadRequestError(verification.Error(), nil)
	case errors.Is(err, status.ErrGatewayTimeout):
		return apis.NewApiError(http.StatusGatewayTimeout, "Payment gateway timed out", nil)
	default:
		return apis.NewInternalServerError("internal error", err)
	}
}
