package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		usersCol, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		eventsCol, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("attendances")

		collection.Fields.Add(
			&core.RelationField{Name: "event", Required: true, CollectionId: eventsCol.Id, MaxSelect: 1},
			&core.RelationField{Name: "buyer", Required: true, CollectionId: usersCol.Id, MaxSelect: 1},
			&core.TextField{Name: "ticket_number", Required: true},
			&core.TextField{Name: "payment_reference", Required: true},
			&core.NumberField{Name: "amount", Required: true, Min: types.Pointer(0.0)},
			&core.TextField{Name: "channel"},
			&core.DateField{Name: "paid_at"},
			&core.DateField{Name: "purchase_date", Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		// Settlement inserts one row per ticket and the rows of a batch share
		// (event, buyer), so this index cannot be unique; the one-purchase-
		// per-buyer rule is enforced inside the store transaction instead.
		collection.AddIndex("idx_attendances_event_buyer", false, "event, buyer", "")
		collection.AddIndex("idx_attendances_ticket_number", true, "ticket_number", "")
		collection.AddIndex("idx_attendances_payment_reference", false, "payment_reference", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("attendances")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
