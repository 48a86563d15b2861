package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "btuekfysogflpv6",
			"name": "booking_tokens",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "rel_user",
					"name": "user",
					"type": "relation",
					"required": true,
					"system": false,
					"collectionId": "_pb_users_auth_",
					"cascadeDelete": true,
					"minSelect": 0,
					"maxSelect": 1
				},
				{
					"id": "rel_event",
					"name": "event",
					"type": "relation",
					"required": true,
					"system": false,
					"collectionId": "evq5x1b6whizo4z",
					"cascadeDelete": true,
					"minSelect": 0,
					"maxSelect": 1
				},
				{
					"id": "text_token",
					"name": "token",
					"type": "text",
					"required": true,
					"system": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "date_issued_at",
					"name": "issued_at",
					"type": "date",
					"required": true,
					"system": false,
					"min": "",
					"max": ""
				},
				{
					"id": "autodate_created",
					"name": "created",
					"type": "autodate",
					"system": false,
					"onCreate": true,
					"onUpdate": false
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_booking_tokens_user_event ON booking_tokens (user, event)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("btuekfysogflpv6")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
