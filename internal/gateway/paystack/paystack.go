package paystack

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata is the typed purchase intent round-tripped through the gateway.
// It is attached at initiation and read back verbatim at verification; this
// is how the stateless callback recovers the purchase without a local
// lookup table.
type Metadata struct {
	EventID   string  `json:"event_id"`
	BuyerID   string  `json:"buyer_id"`
	Quantity  FlexInt `json:"quantity"`
	EventName string  `json:"event_name,omitempty"`
	BuyerName string  `json:"buyer_name,omitempty"`
	Phone     string  `json:"phone,omitempty"`
}

// Validate rejects metadata that cannot drive a settlement. Callers treat a
// failure here the same as a failed gateway verification.
func (m *Metadata) Validate() error {
	if m.EventID == "" {
		return errors.New("metadata: missing event_id")
	}
	if m.BuyerID == "" {
		return errors.New("metadata: missing buyer_id")
	}
	if int(m.Quantity) < 1 {
		return fmt.Errorf("metadata: invalid quantity %d", int(m.Quantity))
	}
	return nil
}

// FlexInt tolerates the gateway echoing numeric metadata back as a string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("metadata: not an integer: %q", string(b))
	}
	*f = FlexInt(n)
	return nil
}

// InitializeRequest describes one hosted checkout session. Amounts are in
// the smallest currency unit. TransactionCharge is the platform's cut,
// routed away from the creator's subaccount, which also bears the gateway
// fee (Bearer "subaccount").
type InitializeRequest struct {
	Email             string   `json:"email"`
	Amount            int64    `json:"amount"`
	Currency          string   `json:"currency"`
	Reference         string   `json:"reference"`
	CallbackURL       string   `json:"callback_url"`
	Metadata          Metadata `json:"metadata"`
	Subaccount        string   `json:"subaccount"`
	TransactionCharge int64    `json:"transaction_charge"`
	Bearer            string   `json:"bearer"`
}

// Session is the gateway's answer to an initialize call.
type Session struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction is the verified server-side view of a payment.
type Transaction struct {
	ID        int64
	Status    string
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Channel   string
	PaidAt    time.Time
	Metadata  Metadata
}

// Paid reports whether the gateway settled the charge.
func (t *Transaction) Paid() bool {
	return t.Status == "success"
}

type txPayload struct {
	ID        int64           `json:"id"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel"`
	PaidAt    string          `json:"paid_at"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (p *txPayload) ToDomain() (*Transaction, error) {
	t := &Transaction{
		ID:        p.ID,
		Status:    p.Status,
		Reference: p.Reference,
		Amount:    decimal.NewFromInt(p.Amount).Div(decimal.NewFromInt(100)),
		Currency:  p.Currency,
		Channel:   p.Channel,
	}

	if p.PaidAt != "" {
		ts, err := time.Parse(time.RFC3339, p.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("paystack: parse paid_at: %w", err)
		}
		t.PaidAt = ts
	}

	// Metadata may be absent or a non-object on abandoned transactions;
	// leave it zero and let the caller's validation reject it.
	if len(p.Metadata) > 0 {
		_ = json.Unmarshal(p.Metadata, &t.Metadata)
	}

	return t, nil
}
