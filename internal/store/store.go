// Package store is the event inventory store. Events, buyers and issued
// tickets live in PocketBase collections; all multi-record invariants
// (capacity, one purchase per buyer, one application per payment reference)
// are enforced inside a single store transaction so that concurrent
// settlements for the same event cannot jointly oversell.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventpass/internal/status"
	"eventpass/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

// FindEvent loads an event with its creator's payout reference and the
// current attendee count.
func (s *Store) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	rec, err := s.app.FindRecordById("events", id)
	if err != nil {
		return nil, status.ErrEventNotFound
	}

	attending, err := s.app.CountRecords("attendances", dbx.HashExp{"event": id})
	if err != nil {
		return nil, fmt.Errorf("store: count attendances: %w", err)
	}

	event := recordToEvent(rec)
	event.Attending = int(attending)

	if creator, err := s.app.FindRecordById("users", event.CreatorID); err == nil {
		event.CreatorName = creator.GetString("name")
		event.PayoutSubaccount = creator.GetString("paystack_subaccount")
	}

	return event, nil
}

func (s *Store) FindUser(ctx context.Context, id string) (*models.User, error) {
	rec, err := s.app.FindRecordById("users", id)
	if err != nil {
		return nil, status.ErrUserNotFound
	}
	return recordToUser(rec), nil
}

// FindAttendanceByReference returns the attendance holding the given payment
// reference, or nil when the reference has never been applied. A store
// failure is reported as an error, never as an absent reference.
func (s *Store) FindAttendanceByReference(ctx context.Context, reference string) (*models.Attendance, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"attendances",
		"payment_reference = {:reference}",
		dbx.Params{"reference": reference},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: find attendance: %w", err)
	}
	return recordToAttendance(rec), nil
}

// HasAttendance reports whether the buyer already holds a ticket for the
// event. This is the soft pre-check; AppendAttendees re-runs it inside the
// commit transaction.
func (s *Store) HasAttendance(ctx context.Context, eventID, buyerID string) (bool, error) {
	count, err := s.app.CountRecords("attendances", dbx.HashExp{"event": eventID, "buyer": buyerID})
	if err != nil {
		return false, fmt.Errorf("store: count attendances: %w", err)
	}
	return count > 0, nil
}

// AppendAttendees commits the tickets of one settled payment. The capacity
// guard, the reference and buyer re-checks and the inserts run in one
// transaction; the store admits a single writer, so concurrent settlements
// on the same event serialize here. This is the linearization point and the
// authoritative backstop for the soft pre-checks.
func (s *Store) AppendAttendees(ctx context.Context, eventID string, attendees []models.Attendance) error {
	if len(attendees) == 0 {
		return nil
	}
	reference := attendees[0].PaymentReference
	buyerID := attendees[0].BuyerID

	return s.app.RunInTransaction(func(tx core.App) error {
		eventRec, err := tx.FindRecordById("events", eventID)
		if err != nil {
			return status.ErrEventNotFound
		}

		count, err := tx.CountRecords("attendances", dbx.HashExp{"event": eventID})
		if err != nil {
			return fmt.Errorf("store: count attendances: %w", err)
		}

		remaining := eventRec.GetInt("capacity") - int(count)
		if len(attendees) > remaining {
			return &status.CapacityError{Remaining: remaining}
		}

		// A redelivered callback for an applied reference loses here.
		applied, err := tx.CountRecords("attendances", dbx.HashExp{"payment_reference": reference})
		if err != nil {
			return fmt.Errorf("store: count references: %w", err)
		}
		if applied > 0 {
			return status.ErrAlreadyProcessed
		}

		// A racing settlement for the same buyer under a fresh reference
		// loses here. One purchase batch per (event, buyer); the rows of a
		// batch share (event, buyer), so this cannot be a unique index.
		held, err := tx.CountRecords("attendances", dbx.HashExp{"event": eventID, "buyer": buyerID})
		if err != nil {
			return fmt.Errorf("store: count attendances: %w", err)
		}
		if held > 0 {
			return status.ErrAlreadyTicketed
		}

		collection, err := tx.FindCollectionByNameOrId("attendances")
		if err != nil {
			return fmt.Errorf("store: find collection: %w", err)
		}

		for _, a := range attendees {
			rec := core.NewRecord(collection)
			rec.Set("event", a.EventID)
			rec.Set("buyer", a.BuyerID)
			rec.Set("ticket_number", a.TicketNumber)
			rec.Set("payment_reference", a.PaymentReference)
			rec.Set("amount", a.Amount.InexactFloat64())
			rec.Set("channel", a.Channel)
			rec.Set("paid_at", a.PaidAt)
			rec.Set("purchase_date", a.PurchaseDate)

			if err := tx.Save(rec); err != nil {
				return fmt.Errorf("store: save attendance: %w", err)
			}
		}

		return nil
	})
}

// UpdateCapacity applies an organizer capacity edit with the same
// conditional-write discipline as settlement: the edit is rejected when it
// would drop capacity below the tickets already sold.
func (s *Store) UpdateCapacity(ctx context.Context, eventID string, capacity int) error {
	return s.app.RunInTransaction(func(tx core.App) error {
		eventRec, err := tx.FindRecordById("events", eventID)
		if err != nil {
			return status.ErrEventNotFound
		}

		sold, err := tx.CountRecords("attendances", dbx.HashExp{"event": eventID})
		if err != nil {
			return fmt.Errorf("store: count attendances: %w", err)
		}
		if capacity < int(sold) {
			return status.ErrCapacityBelowSold
		}

		eventRec.Set("capacity", capacity)
		return tx.Save(eventRec)
	})
}

// FindAttendancesByBuyer lists a buyer's tickets, newest first.
func (s *Store) FindAttendancesByBuyer(ctx context.Context, buyerID string) ([]models.Attendance, error) {
	recs, err := s.app.FindRecordsByFilter(
		"attendances",
		"buyer = {:buyerId}",
		"-purchase_date",
		200,
		0,
		dbx.Params{"buyerId": buyerID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: find attendances: %w", err)
	}

	attendances := make([]models.Attendance, 0, len(recs))
	for _, rec := range recs {
		attendances = append(attendances, *recordToAttendance(rec))
	}
	return attendances, nil
}

func recordToEvent(rec *core.Record) *models.Event {
	return &models.Event{
		ID:                rec.Id,
		Name:              rec.GetString("name"),
		Description:       rec.GetString("description"),
		Location:          rec.GetString("location"),
		EventDate:         rec.GetDateTime("event_date").Time(),
		EventTime:         rec.GetString("event_time"),
		Duration:          rec.GetString("duration"),
		Thumbnail:         rec.GetString("thumbnail"),
		Capacity:          rec.GetInt("capacity"),
		TicketPrice:       decimal.NewFromFloat(rec.GetFloat("ticket_price")),
		CreatorID:         rec.GetString("creator"),
		AgeRestriction:    rec.GetString("age_restriction"),
		GenderRestriction: rec.GetString("gender_restriction"),
	}
}

func recordToUser(rec *core.Record) *models.User {
	return &models.User{
		ID:               rec.Id,
		Name:             rec.GetString("name"),
		Username:         rec.GetString("username"),
		Email:            rec.GetString("email"),
		Phone:            rec.GetString("phone"),
		Gender:           rec.GetString("gender"),
		DateOfBirth:      rec.GetDateTime("date_of_birth").Time(),
		PayoutSubaccount: rec.GetString("paystack_subaccount"),
	}
}

func recordToAttendance(rec *core.Record) *models.Attendance {
	return &models.Attendance{
		ID:               rec.Id,
		EventID:          rec.GetString("event"),
		BuyerID:          rec.GetString("buyer"),
		TicketNumber:     rec.GetString("ticket_number"),
		PaymentReference: rec.GetString("payment_reference"),
		Amount:           decimal.NewFromFloat(rec.GetFloat("amount")),
		Channel:          rec.GetString("channel"),
		PaidAt:           rec.GetDateTime("paid_at").Time(),
		PurchaseDate:     rec.GetDateTime("purchase_date").Time(),
	}
}
