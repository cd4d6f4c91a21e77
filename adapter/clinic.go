package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Appointment is a booked procedure slot. Book and Cancel form a
// compensation pair.
type Appointment struct {
	ID   string
	Slot string
	Fee  float64
}

// Clinic books and cancels procedure appointments.
type Clinic struct {
	mu      sync.Mutex
	slots   map[string]bool // slot -> free
	booked  map[string]Appointment
	fee     float64

	Faults  FaultPolicy
	Latency time.Duration
}

// NewClinic builds a clinic offering the given slots at a flat booking fee.
func NewClinic(fee float64, slots ...string) *Clinic {
	c := &Clinic{
		slots:  make(map[string]bool, len(slots)),
		booked: make(map[string]Appointment),
		fee:    fee,
		Faults: NoFaults{},
	}
	for _, s := range slots {
		c.slots[s] = true
	}
	return c
}

// Book claims a slot and returns the appointment.
func (c *Clinic) Book(ctx context.Context, slot string) (Appointment, error) {
	pause(c.Latency)
	if err := ctx.Err(); err != nil {
		return Appointment{}, Transient("clinic.book", err)
	}
	if err := c.Faults.Fault("clinic.book"); err != nil {
		return Appointment{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	free, ok := c.slots[slot]
	if !ok || !free {
		return Appointment{}, Business("clinic.book", CodeNoSlotAvailable, "slot %q is not available", slot)
	}
	c.slots[slot] = false
	appt := Appointment{ID: uuid.NewString(), Slot: slot, Fee: c.fee}
	c.booked[appt.ID] = appt
	return appt, nil
}

// Cancel frees a booked appointment's slot.
func (c *Clinic) Cancel(ctx context.Context, appointmentID string) error {
	pause(c.Latency)
	if err := ctx.Err(); err != nil {
		return Transient("clinic.cancel", err)
	}
	if err := c.Faults.Fault("clinic.cancel"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	appt, ok := c.booked[appointmentID]
	if !ok {
		return Business("clinic.cancel", CodeNotFound, "unknown appointment %q", appointmentID)
	}
	delete(c.booked, appointmentID)
	c.slots[appt.Slot] = true
	return nil
}

// Booked reports whether an appointment is still held.
func (c *Clinic) Booked(appointmentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.booked[appointmentID]
	return ok
}
