package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection.Fields.Add(
			&core.TextField{Name: "phone"},
			&core.SelectField{Name: "gender", MaxSelect: 1, Values: []string{"male", "female"}},
			&core.DateField{Name: "date_of_birth"},
			&core.TextField{Name: "paystack_subaccount"},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection.Fields.RemoveByName("phone")
		collection.Fields.RemoveByName("gender")
		collection.Fields.RemoveByName("date_of_birth")
		collection.Fields.RemoveByName("paystack_subaccount")

		return app.Save(collection)
	})
}
