package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutSession is what initiation hands back to the buyer: the hosted
// checkout redirect target plus the reference to verify with later. Nothing
// is persisted locally; an abandoned checkout leaves no residue.
type CheckoutSession struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code,omitempty"`
	Reference        string `json:"reference"`
}

// SettlementResult summarizes a settled purchase for display to the buyer.
type SettlementResult struct {
	Event   EventSummary   `json:"event"`
	Payment PaymentSummary `json:"payment"`
	Tickets []IssuedTicket `json:"tickets"`
}

type EventSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	EventDate time.Time `json:"event_date"`
	EventTime string    `json:"event_time"`
	Location  string    `json:"location"`
	Duration  string    `json:"duration,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

type PaymentSummary struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	Channel   string          `json:"channel"`
}

type IssuedTicket struct {
	TicketNumber string          `json:"ticket_number"`
	Amount       decimal.Decimal `json:"amount"`
}

// FulfillmentJob is the delivery unit queued after settlement. Attempts
// counts deliveries already tried; the worker bounds retries with it.
type FulfillmentJob struct {
	Reference     string          `json:"reference"`
	EventID       string          `json:"event_id"`
	EventName     string          `json:"event_name"`
	EventDate     time.Time       `json:"event_date"`
	EventTime     string          `json:"event_time"`
	EventLocation string          `json:"event_location"`
	BuyerID       string          `json:"buyer_id"`
	BuyerName     string          `json:"buyer_name"`
	BuyerEmail    string          `json:"buyer_email"`
	TicketNumbers []string        `json:"ticket_numbers"`
	Quantity      int             `json:"quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Attempts      int             `json:"attempts"`
}
