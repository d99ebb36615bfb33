package models

// OwnerType says what kind of catalog entry a purchasable item belongs to.
// It decides the type of the tickets issued at settlement.
type OwnerType string

const (
	OwnerEvent      OwnerType = "event"
	OwnerWorkshop   OwnerType = "workshop"
	OwnerAttraction OwnerType = "attraction"
)

// CatalogItem is the catalog service's view of a purchasable unit. The price
// reported here is trusted and frozen at order-build time.
type CatalogItem struct {
	CatalogItemID string    `json:"catalog_item_id"`
	Name          string    `json:"name"`
	UnitPrice     float64   `json:"unit_price"`
	OwnerType     OwnerType `json:"owner_type"`
	Quota         int       `json:"quota"`
}

// TicketTypeFor maps a catalog owner type to the ticket type issued for it.
func TicketTypeFor(owner OwnerType) string {
	switch owner {
	case OwnerWorkshop:
		return TicketTypeWorkshop
	case OwnerEvent:
		return TicketTypeEvent
	default:
		return TicketTypeEntrance
	}
}
