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

		collection := core.NewBaseCollection("events")

		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "description"},
			&core.TextField{Name: "location", Required: true},
			&core.DateField{Name: "event_date", Required: true},
			&core.TextField{Name: "event_time"},
			&core.TextField{Name: "duration"},
			&core.URLField{Name: "thumbnail"},
			&core.NumberField{Name: "capacity", Required: true, Min: types.Pointer(1.0), OnlyInt: true},
			&core.NumberField{Name: "ticket_price", Required: true, Min: types.Pointer(0.0)},
			&core.RelationField{Name: "creator", Required: true, CollectionId: usersCol.Id, MaxSelect: 1},
			&core.SelectField{Name: "age_restriction", MaxSelect: 1, Values: []string{
				"no-restriction", "<18", "18-29", "30-39", "40<",
			}},
			&core.SelectField{Name: "gender_restriction", MaxSelect: 1, Values: []string{
				"all", "male", "female",
			}},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_events_creator", false, "creator", "")
		collection.AddIndex("idx_events_event_date", false, "event_date", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
