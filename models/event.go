package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Age restriction policy values. Stored verbatim on the event record.
const (
	AgeNoRestriction = "no-restriction"
	AgeUnder18       = "<18"
	Age18To29        = "18-29"
	Age30To39        = "30-39"
	Age40AndAbove    = "40<"
)

// Gender restriction policy values.
const (
	GenderAll    = "all"
	GenderMale   = "male"
	GenderFemale = "female"
)

type Event struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Location          string          `json:"location"`
	EventDate         time.Time       `json:"event_date"`
	EventTime         string          `json:"event_time"`
	Duration          string          `json:"duration,omitempty"`
	Thumbnail         string          `json:"thumbnail,omitempty"`
	Capacity          int             `json:"capacity"`
	TicketPrice       decimal.Decimal `json:"ticket_price"`
	Attending         int             `json:"attending"`
	CreatorID         string          `json:"creator_id"`
	CreatorName       string          `json:"creator_name,omitempty"`
	PayoutSubaccount  string          `json:"-"`
	AgeRestriction    string          `json:"age_restriction"`
	GenderRestriction string          `json:"gender_restriction"`
}

// Remaining is the best-effort remaining capacity as of load time. The
// authoritative check happens inside the store's conditional append.
func (e *Event) Remaining() int {
	return e.Capacity - e.Attending
}

// Attendance is one issued ticket. Created only by settlement, never
// mutated afterwards.
type Attendance struct {
	ID               string          `json:"id,omitempty"`
	EventID          string          `json:"event_id"`
	BuyerID          string          `json:"buyer_id"`
	TicketNumber     string          `json:"ticket_number"`
	PaymentReference string          `json:"payment_reference"`
	Amount           decimal.Decimal `json:"amount"`
	Channel          string          `json:"channel,omitempty"`
	PaidAt           time.Time       `json:"paid_at,omitempty"`
	PurchaseDate     time.Time       `json:"purchase_date"`
}
