package models

import (
	"github.com/shopspring/decimal"
)

const (
	TicketTypeStandard = "standard"
	TicketTypeVIP      = "vip"
	TicketTypeDiscount = "discount"
)

type TicketBatch struct {
	ID              string          `json:"id"`
	EventID         string          `json:"event_id"`
	TicketType      string          `json:"ticket_type"` // standard, vip, discount
	Price           decimal.Decimal `json:"price"`
	NumberOfTickets int             `json:"number_of_tickets"`
	TicketsSold     int             `json:"tickets_sold"`
}

// Remaining reports how many tickets are still available in the batch.
func (b *TicketBatch) Remaining() int {
	return b.NumberOfTickets - b.TicketsSold
}

func (b *TicketBatch) SoldOut() bool {
	return b.TicketsSold >= b.NumberOfTickets
}
