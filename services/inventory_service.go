package services

import (
	"fmt"

	"event-ticketing/internal/status"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// InventoryService guards the tickets_sold counter. Reservations are a
// single conditional UPDATE so two concurrent requests can never both read
// a stale counter and oversell: the database applies them one at a time
// and the WHERE clause rejects whichever would exceed capacity.
type InventoryService struct{}

func NewInventoryService() *InventoryService {
	return &InventoryService{}
}

// Reserve increments tickets_sold by count unless that would exceed the
// batch capacity. It must run inside the caller's transaction (txApp) so
// the increment commits or rolls back together with the booking row.
func (s *InventoryService) Reserve(txApp core.App, batchID string, count int) error {
	if count <= 0 {
		return status.ErrInvalidTicketCount
	}

	result, err := txApp.DB().NewQuery(`
		UPDATE ticket_batches
		SET tickets_sold = tickets_sold + {:count}
		WHERE id = {:id} AND tickets_sold + {:count} <= number_of_tickets
	`).Bind(dbx.Params{"count": count, "id": batchID}).Execute()
	if err != nil {
		return fmt.Errorf("reserve tickets: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve tickets: %w", err)
	}

	if affected == 0 {
		// The guard rejected the update: either the batch is gone or the
		// remaining capacity is too small. Re-fetch to tell them apart.
		if _, err := txApp.FindRecordById("ticket_batches", batchID); err != nil {
			return status.ErrTicketBatchNotFound
		}
		return status.ErrInsufficientInventory
	}

	return nil
}
