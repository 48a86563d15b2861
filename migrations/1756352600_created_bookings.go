package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "bk453lmg86hyoqs",
			"name": "bookings",
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
					"cascadeDelete": false,
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
					"cascadeDelete": false,
					"minSelect": 0,
					"maxSelect": 1
				},
				{
					"id": "rel_ticket_batch",
					"name": "ticket_batch",
					"type": "relation",
					"required": true,
					"system": false,
					"collectionId": "tbn8macsz2ajpgz",
					"cascadeDelete": false,
					"minSelect": 0,
					"maxSelect": 1
				},
				{
					"id": "num_ticket_count",
					"name": "ticket_count",
					"type": "number",
					"required": true,
					"system": false,
					"onlyInt": true,
					"min": 1
				},
				{
					"id": "sel_payment_status",
					"name": "payment_status",
					"type": "select",
					"required": true,
					"system": false,
					"maxSelect": 1,
					"values": [
						"pending",
						"confirmed",
						"cancelled"
					]
				},
				{
					"id": "text_reference_code",
					"name": "reference_code",
					"type": "text",
					"required": true,
					"system": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "date_confirmed_at",
					"name": "confirmed_at",
					"type": "date",
					"required": false,
					"system": false,
					"min": "",
					"max": ""
				},
				{
					"id": "date_cancelled_at",
					"name": "cancelled_at",
					"type": "date",
					"required": false,
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
				},
				{
					"id": "autodate_updated",
					"name": "updated",
					"type": "autodate",
					"system": false,
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_bookings_reference_code ON bookings (reference_code)",
				"CREATE INDEX idx_bookings_user ON bookings (user)",
				"CREATE INDEX idx_bookings_event ON bookings (event)"
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
		collection, err := app.FindCollectionByNameOrId("bk453lmg86hyoqs")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
