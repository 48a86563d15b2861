package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "evq5x1b6whizo4z",
			"name": "events",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "text_name",
					"name": "name",
					"type": "text",
					"required": true,
					"system": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "text_description",
					"name": "description",
					"type": "text",
					"required": false,
					"system": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "text_location",
					"name": "location",
					"type": "text",
					"required": false,
					"system": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "rel_host",
					"name": "host",
					"type": "relation",
					"required": true,
					"system": false,
					"collectionId": "_pb_users_auth_",
					"cascadeDelete": false,
					"minSelect": 0,
					"maxSelect": 1
				},
				{
					"id": "date_start",
					"name": "start_date",
					"type": "date",
					"required": true,
					"system": false,
					"min": "",
					"max": ""
				},
				{
					"id": "date_end",
					"name": "end_date",
					"type": "date",
					"required": true,
					"system": false,
					"min": "",
					"max": ""
				},
				{
					"id": "num_max_attendance",
					"name": "max_attendance",
					"type": "number",
					"required": true,
					"system": false,
					"onlyInt": true,
					"min": 1
				},
				{
					"id": "bool_queue_active",
					"name": "queue_active",
					"type": "bool",
					"required": false,
					"system": false
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
				"CREATE UNIQUE INDEX idx_events_single_active_queue ON events (queue_active) WHERE queue_active = true"
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
		collection, err := app.FindCollectionByNameOrId("evq5x1b6whizo4z")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
