package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"eventpass/config"
	"eventpass/internal/gateway/paystack"
	"eventpass/internal/status"
	"eventpass/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInventory is an in-memory Inventory with the same conditional-append
// semantics as the real store: capacity check, reference re-check and the
// (event, buyer) uniqueness guard all happen under one lock.
type fakeInventory struct {
	mu          sync.Mutex
	events      map[string]*models.Event
	users       map[string]*models.User
	attendances []models.Attendance
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		events: make(map[string]*models.Event),
		users:  make(map[string]*models.User),
	}
}

func (f *fakeInventory) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.events[id]
	if !ok {
		return nil, status.ErrEventNotFound
	}
	copied := *event
	copied.Attending = f.countLocked(id)
	return &copied, nil
}

func (f *fakeInventory) FindUser(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return nil, status.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeInventory) FindAttendanceByReference(ctx context.Context, reference string) (*models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.attendances {
		if f.attendances[i].PaymentReference == reference {
			copied := f.attendances[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeInventory) HasAttendance(ctx context.Context, eventID, buyerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.attendances {
		if f.attendances[i].EventID == eventID && f.attendances[i].BuyerID == buyerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInventory) AppendAttendees(ctx context.Context, eventID string, attendees []models.Attendance) error {
	if len(attendees) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.events[eventID]
	if !ok {
		return status.ErrEventNotFound
	}

	remaining := event.Capacity - f.countLocked(eventID)
	if len(attendees) > remaining {
		return &status.CapacityError{Remaining: remaining}
	}

	reference := attendees[0].PaymentReference
	for i := range f.attendances {
		if f.attendances[i].PaymentReference == reference {
			return status.ErrAlreadyProcessed
		}
		if f.attendances[i].EventID == eventID && f.attendances[i].BuyerID == attendees[0].BuyerID {
			return status.ErrAlreadyTicketed
		}
	}

	f.attendances = append(f.attendances, attendees...)
	return nil
}

func (f *fakeInventory) countLocked(eventID string) int {
	count := 0
	for i := range f.attendances {
		if f.attendances[i].EventID == eventID {
			count++
		}
	}
	return count
}

type fakeGateway struct {
	initFn   func(ctx context.Context, req *paystack.InitializeRequest) (*paystack.Session, error)
	verifyFn func(ctx context.Context, reference string) (*paystack.Transaction, error)

	mu        sync.Mutex
	initCalls []*paystack.InitializeRequest
}

func (f *fakeGateway) InitializeTransaction(ctx context.Context, req *paystack.InitializeRequest) (*paystack.Session, error) {
	f.mu.Lock()
	f.initCalls = append(f.initCalls, req)
	f.mu.Unlock()

	if f.initFn != nil {
		return f.initFn(ctx, req)
	}
	return &paystack.Session{
		AuthorizationURL: "https://checkout.paystack.com/abc",
		AccessCode:       "abc",
		Reference:        req.Reference,
	}, nil
}

func (f *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, reference)
	}
	return nil, &status.VerificationError{Status: "not_found"}
}

func testConfig() *config.Config {
	return &config.Config{
		PaymentCurrency:        "ZAR",
		CallbackURL:            "http://localhost:8090/payment/callback",
		VerifyMaxRetries:       2,
		VerifyBackoff:          time.Millisecond,
		FulfillmentMaxAttempts: 3,
		FulfillmentRetryDelay:  time.Millisecond,
	}
}

func seedEventAndBuyer(inv *fakeInventory) (*models.Event, *models.User) {
	event := &models.Event{
		ID:                "evt1",
		Name:              "Go Conference",
		Location:          "Cape Town",
		EventDate:         time.Now().Add(30 * 24 * time.Hour),
		Capacity:          100,
		TicketPrice:       decimal.NewFromFloat(250.00),
		CreatorID:         "creator1",
		PayoutSubaccount:  "ACCT_abc123",
		AgeRestriction:    models.AgeNoRestriction,
		GenderRestriction: models.GenderAll,
	}
	buyer := &models.User{
		ID:          "user1",
		Name:        "Thabo M",
		Email:       "thabo@example.com",
		Gender:      "male",
		DateOfBirth: time.Date(2000, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	inv.events[event.ID] = event
	inv.users[buyer.ID] = buyer
	return event, buyer
}

func TestSplitAmounts(t *testing.T) {
	tests := []struct {
		name       string
		total      string
		totalMinor int64
		fee        int64
		creator    int64
	}{
		{"round hundred", "100.00", 10000, 1300, 8700},
		{"two tickets at 250", "500.00", 50000, 6500, 43500},
		{"repeating split rounds half up", "33.33", 3333, 433, 2900},
		{"one cent", "0.01", 1, 0, 1},
		{"price with half cent fee", "0.50", 50, 7, 43},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			totalMinor, fee, creator := SplitAmounts(total)

			assert.Equal(t, tt.totalMinor, totalMinor)
			assert.Equal(t, tt.fee, fee)
			assert.Equal(t, tt.creator, creator)
			assert.Equal(t, totalMinor, fee+creator, "split must be exact")
		})
	}
}

func TestInitiate_Success(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	gateway := &fakeGateway{}
	svc := NewPurchaseService(inv, gateway, testConfig())

	session, err := svc.Initiate(context.Background(), InitiateRequest{
		EventID:  event.ID,
		BuyerID:  buyer.ID,
		Quantity: 2,
		Phone:    "+27831234567",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", session.AuthorizationURL)
	assert.True(t, strings.HasPrefix(session.Reference, "EVT_evt1_"))

	require.Len(t, gateway.initCalls, 1)
	call := gateway.initCalls[0]
	assert.Equal(t, int64(50000), call.Amount)
	assert.Equal(t, int64(6500), call.TransactionCharge)
	assert.Equal(t, "ACCT_abc123", call.Subaccount)
	assert.Equal(t, "subaccount", call.Bearer)
	assert.Equal(t, "ZAR", call.Currency)
	assert.Equal(t, buyer.Email, call.Email)
	assert.Equal(t, event.ID, call.Metadata.EventID)
	assert.Equal(t, buyer.ID, call.Metadata.BuyerID)
	assert.Equal(t, 2, int(call.Metadata.Quantity))
}

func TestInitiate_DefaultsQuantityToOne(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	gateway := &fakeGateway{}
	svc := NewPurchaseService(inv, gateway, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		EventID: event.ID,
		BuyerID: buyer.ID,
	})

	require.NoError(t, err)
	require.Len(t, gateway.initCalls, 1)
	assert.Equal(t, int64(25000), gateway.initCalls[0].Amount)
	assert.Equal(t, 1, int(gateway.initCalls[0].Metadata.Quantity))
}

func TestInitiate_EventNotFound(t *testing.T) {
	inv := newFakeInventory()
	svc := NewPurchaseService(inv, &fakeGateway{}, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{EventID: "missing", BuyerID: "user1"})

	assert.ErrorIs(t, err, status.ErrEventNotFound)
}

func TestInitiate_PayoutNotConfigured(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	event.PayoutSubaccount = ""
	gateway := &fakeGateway{}
	svc := NewPurchaseService(inv, gateway, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{EventID: event.ID, BuyerID: buyer.ID})

	assert.ErrorIs(t, err, status.ErrPayoutNotConfigured)
	assert.Empty(t, gateway.initCalls, "gateway must not be called")
}

func TestInitiate_SoldOut(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	event.Capacity = 1
	inv.attendances = append(inv.attendances, models.Attendance{
		EventID: event.ID, BuyerID: "someone-else", PaymentReference: "EVT_evt1_1_aaaaa",
	})
	svc := NewPurchaseService(inv, &fakeGateway{}, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{EventID: event.ID, BuyerID: buyer.ID})

	assert.ErrorIs(t, err, status.ErrSoldOut)
}

func TestInitiate_QuantityExceedsRemaining(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	event.Capacity = 3
	svc := NewPurchaseService(inv, &fakeGateway{}, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		EventID: event.ID, BuyerID: buyer.ID, Quantity: 5,
	})

	var capacity *status.CapacityError
	require.ErrorAs(t, err, &capacity)
	assert.Equal(t, 3, capacity.Remaining)
}

func TestInitiate_AlreadyTicketed(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	inv.attendances = append(inv.attendances, models.Attendance{
		EventID: event.ID, BuyerID: buyer.ID, PaymentReference: "EVT_evt1_1_aaaaa",
	})
	svc := NewPurchaseService(inv, &fakeGateway{}, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{EventID: event.ID, BuyerID: buyer.ID})

	assert.ErrorIs(t, err, status.ErrAlreadyTicketed)
}

func TestInitiate_AmountMismatch(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	svc := NewPurchaseService(inv, &fakeGateway{}, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		EventID:    event.ID,
		BuyerID:    buyer.ID,
		UnitAmount: decimal.NewFromFloat(199.99),
	})

	assert.ErrorIs(t, err, status.ErrAmountMismatch)
}

func TestInitiate_RestrictedEventRejectsIneligibleBuyer(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	event.GenderRestriction = models.GenderFemale
	gateway := &fakeGateway{}
	svc := NewPurchaseService(inv, gateway, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{EventID: event.ID, BuyerID: buyer.ID})

	var eligibility *status.EligibilityError
	require.ErrorAs(t, err, &eligibility)
	assert.Equal(t, "gender", eligibility.Field)
	assert.Empty(t, gateway.initCalls)
}

func TestInitiate_ExplicitEmailOverridesProfile(t *testing.T) {
	inv := newFakeInventory()
	event, buyer := seedEventAndBuyer(inv)
	gateway := &fakeGateway{}
	svc := NewPurchaseService(inv, gateway, testConfig())

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		EventID: event.ID,
		BuyerID: buyer.ID,
		Email:   "other@example.com",
	})

	require.NoError(t, err)
	require.Len(t, gateway.initCalls, 1)
	assert.Equal(t, "other@example.com", gateway.initCalls[0].Email)
}
