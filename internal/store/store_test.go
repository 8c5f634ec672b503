package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"eventpass/internal/status"
	_ "eventpass/migrations"
	"eventpass/models"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp bootstraps a throwaway app in a temp dir and applies the
// project migrations, so the tests run against the real collections and
// indexes settlement writes to.
func newTestApp(t *testing.T) core.App {
	t.Helper()

	app := core.NewBaseApp(core.BaseAppConfig{DataDir: t.TempDir()})
	require.NoError(t, app.Bootstrap())
	t.Cleanup(func() { app.ResetBootstrapState() })

	for _, migration := range core.AppMigrations.Items() {
		require.NoError(t, migration.Up(app), "migration %s", migration.File)
	}

	return app
}

func seedTestUser(t *testing.T, app core.App, email string) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("users")
	require.NoError(t, err)

	rec := core.NewRecord(collection)
	rec.SetEmail(email)
	rec.SetPassword("1234567890")
	require.NoError(t, app.Save(rec))
	return rec
}

func seedTestEvent(t *testing.T, app core.App, creatorID string, capacity int) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("events")
	require.NoError(t, err)

	rec := core.NewRecord(collection)
	rec.Set("name", "Go Conference")
	rec.Set("location", "Cape Town")
	rec.Set("event_date", time.Now().Add(30*24*time.Hour))
	rec.Set("capacity", capacity)
	rec.Set("ticket_price", 250.0)
	rec.Set("creator", creatorID)
	require.NoError(t, app.Save(rec))
	return rec
}

func ticketBatch(eventID, buyerID, reference string, quantity int) []models.Attendance {
	now := time.Now()
	batch := make([]models.Attendance, 0, quantity)
	for i := 0; i < quantity; i++ {
		batch = append(batch, models.Attendance{
			EventID:          eventID,
			BuyerID:          buyerID,
			TicketNumber:     fmt.Sprintf("TKT-%d-%s%06d", now.UnixMilli(), reference[len(reference)-5:], i),
			PaymentReference: reference,
			Amount:           decimal.RequireFromString("250.00"),
			Channel:          "card",
			PaidAt:           now,
			PurchaseDate:     now,
		})
	}
	return batch
}

func TestAppendAttendees_MultiTicketBatch(t *testing.T) {
	app := newTestApp(t)
	buyer := seedTestUser(t, app, "thabo@example.com")
	event := seedTestEvent(t, app, seedTestUser(t, app, "creator@example.com").Id, 10)
	store := New(app)
	ctx := context.Background()

	err := store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, buyer.Id, "EVT_x_1_aaaaa", 2))

	require.NoError(t, err, "a quantity-2 purchase must commit as one batch")

	loaded, err := store.FindEvent(ctx, event.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Attending)

	tickets, err := store.FindAttendancesByBuyer(ctx, buyer.Id)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.NotEqual(t, tickets[0].TicketNumber, tickets[1].TicketNumber)
	assert.Equal(t, tickets[0].PaymentReference, tickets[1].PaymentReference)
}

func TestAppendAttendees_DuplicateReferenceRejected(t *testing.T) {
	app := newTestApp(t)
	first := seedTestUser(t, app, "thabo@example.com")
	second := seedTestUser(t, app, "lerato@example.com")
	event := seedTestEvent(t, app, seedTestUser(t, app, "creator@example.com").Id, 10)
	store := New(app)
	ctx := context.Background()

	require.NoError(t, store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, first.Id, "EVT_x_1_aaaaa", 1)))

	err := store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, second.Id, "EVT_x_1_aaaaa", 1))

	assert.ErrorIs(t, err, status.ErrAlreadyProcessed)

	loaded, err := store.FindEvent(ctx, event.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Attending, "redelivered reference must not add rows")
}

func TestAppendAttendees_DuplicateBuyerRejected(t *testing.T) {
	app := newTestApp(t)
	buyer := seedTestUser(t, app, "thabo@example.com")
	event := seedTestEvent(t, app, seedTestUser(t, app, "creator@example.com").Id, 10)
	store := New(app)
	ctx := context.Background()

	require.NoError(t, store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, buyer.Id, "EVT_x_1_aaaaa", 1)))

	// Same buyer under a fresh reference: the in-transaction re-check is the
	// backstop when the soft pre-check raced.
	err := store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, buyer.Id, "EVT_x_2_fffff", 1))

	assert.ErrorIs(t, err, status.ErrAlreadyTicketed)

	loaded, err := store.FindEvent(ctx, event.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Attending)
}

func TestAppendAttendees_CapacityGuard(t *testing.T) {
	app := newTestApp(t)
	first := seedTestUser(t, app, "thabo@example.com")
	second := seedTestUser(t, app, "lerato@example.com")
	event := seedTestEvent(t, app, seedTestUser(t, app, "creator@example.com").Id, 2)
	store := New(app)
	ctx := context.Background()

	require.NoError(t, store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, first.Id, "EVT_x_1_aaaaa", 1)))

	err := store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, second.Id, "EVT_x_2_fffff", 2))

	var capacity *status.CapacityError
	require.ErrorAs(t, err, &capacity)
	assert.Equal(t, 1, capacity.Remaining)

	loaded, err := store.FindEvent(ctx, event.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Attending, "rejected batch must leave no partial rows")
}

func TestUpdateCapacity_RejectedBelowSold(t *testing.T) {
	app := newTestApp(t)
	buyer := seedTestUser(t, app, "thabo@example.com")
	event := seedTestEvent(t, app, seedTestUser(t, app, "creator@example.com").Id, 10)
	store := New(app)
	ctx := context.Background()

	require.NoError(t, store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, buyer.Id, "EVT_x_1_aaaaa", 2)))

	err := store.UpdateCapacity(ctx, event.Id, 1)
	assert.ErrorIs(t, err, status.ErrCapacityBelowSold)

	require.NoError(t, store.UpdateCapacity(ctx, event.Id, 2))

	loaded, err := store.FindEvent(ctx, event.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Capacity)
}

func TestFindAttendanceByReference(t *testing.T) {
	app := newTestApp(t)
	buyer := seedTestUser(t, app, "thabo@example.com")
	event := seedTestEvent(t, app, seedTestUser(t, app, "creator@example.com").Id, 10)
	store := New(app)
	ctx := context.Background()

	attendance, err := store.FindAttendanceByReference(ctx, "EVT_x_1_aaaaa")
	require.NoError(t, err)
	assert.Nil(t, attendance, "unapplied reference reads as absent, not as an error")

	require.NoError(t, store.AppendAttendees(ctx, event.Id, ticketBatch(event.Id, buyer.Id, "EVT_x_1_aaaaa", 1)))

	attendance, err = store.FindAttendanceByReference(ctx, "EVT_x_1_aaaaa")
	require.NoError(t, err)
	require.NotNil(t, attendance)
	assert.Equal(t, buyer.Id, attendance.BuyerID)
	assert.Equal(t, "EVT_x_1_aaaaa", attendance.PaymentReference)
}
