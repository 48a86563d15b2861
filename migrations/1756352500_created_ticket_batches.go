package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "tbn8macsz2ajpgz",
			"name": "ticket_batches",
			"type": "base",
			"system": false,
			"fields": [
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
					"id": "sel_ticket_type",
					"name": "ticket_type",
					"type": "select",
					"required": true,
					"system": false,
					"maxSelect": 1,
					"values": [
						"standard",
						"vip",
						"discount"
					]
				},
				{
					"id": "num_price",
					"name": "price",
					"type": "number",
					"required": false,
					"system": false,
					"onlyInt": false,
					"min": 0
				},
				{
					"id": "num_total",
					"name": "number_of_tickets",
					"type": "number",
					"required": true,
					"system": false,
					"onlyInt": true,
					"min": 1
				},
				{
					"id": "num_sold",
					"name": "tickets_sold",
					"type": "number",
					"required": false,
					"system": false,
					"onlyInt": true,
					"min": 0
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
				"CREATE INDEX idx_ticket_batches_event ON ticket_batches (event)"
			],
			"listRule": "",
			"viewRule": "",
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
		collection, err := app.FindCollectionByNameOrId("tbn8macsz2ajpgz")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
