package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StockItem is one sellable line in the inventory catalog.
type StockItem struct {
	SKU   string
	Qty   int
	Price float64
}

// Reservation is the minimal identifier a saga keeps for later release.
type Reservation struct {
	ID   string
	SKU  string
	Qty  int
	Cost float64
}

// Inventory reserves and releases catalog stock. Reserve and Release form a
// compensation pair.
type Inventory struct {
	mu       sync.Mutex
	catalog  map[string]*StockItem
	reserved map[string]Reservation

	Faults  FaultPolicy
	Latency time.Duration
}

// NewInventory builds an inventory seeded with the given catalog.
func NewInventory(items ...StockItem) *Inventory {
	inv := &Inventory{
		catalog:  make(map[string]*StockItem, len(items)),
		reserved: make(map[string]Reservation),
		Faults:   NoFaults{},
	}
	for i := range items {
		item := items[i]
		inv.catalog[item.SKU] = &item
	}
	return inv
}

// Reserve holds qty units of sku and returns a reservation token.
// Insufficient stock is a business rejection, not a retryable fault.
func (inv *Inventory) Reserve(ctx context.Context, sku string, qty int) (Reservation, error) {
	pause(inv.Latency)
	if err := ctx.Err(); err != nil {
		return Reservation{}, Transient("inventory.reserve", err)
	}
	if err := inv.Faults.Fault("inventory.reserve"); err != nil {
		return Reservation{}, err
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	item, ok := inv.catalog[sku]
	if !ok {
		return Reservation{}, Business("inventory.reserve", CodeNotFound, "unknown sku %q", sku)
	}
	if item.Qty < qty {
		return Reservation{}, Business("inventory.reserve", CodeStockUnavailable,
			"sku %q has %d units, requested %d", sku, item.Qty, qty)
	}

	item.Qty -= qty
	res := Reservation{
		ID:   uuid.NewString(),
		SKU:  sku,
		Qty:  qty,
		Cost: item.Price * float64(qty),
	}
	inv.reserved[res.ID] = res
	return res, nil
}

// Release returns a reservation's units to stock.
func (inv *Inventory) Release(ctx context.Context, reservationID string) error {
	pause(inv.Latency)
	if err := ctx.Err(); err != nil {
		return Transient("inventory.release", err)
	}
	if err := inv.Faults.Fault("inventory.release"); err != nil {
		return err
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	res, ok := inv.reserved[reservationID]
	if !ok {
		return Business("inventory.release", CodeNotFound, "unknown reservation %q", reservationID)
	}
	delete(inv.reserved, reservationID)
	if item, ok := inv.catalog[res.SKU]; ok {
		item.Qty += res.Qty
	}
	return nil
}

// Held reports whether a reservation is still outstanding.
func (inv *Inventory) Held(reservationID string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	_, ok := inv.reserved[reservationID]
	return ok
}
