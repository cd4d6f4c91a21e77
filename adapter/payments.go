package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Payment is a captured charge. Charge and Refund form a compensation pair.
type Payment struct {
	ID      string
	Account string
	Amount  float64
}

// Payments charges and refunds accounts. Accounts on the block list reject
// every charge as a business failure.
type Payments struct {
	mu       sync.Mutex
	blocked  map[string]bool
	captured map[string]Payment
	refunded map[string]bool

	Faults  FaultPolicy
	Latency time.Duration
}

// NewPayments builds a payment processor with the given blocked accounts.
func NewPayments(blockedAccounts ...string) *Payments {
	p := &Payments{
		blocked:  make(map[string]bool, len(blockedAccounts)),
		captured: make(map[string]Payment),
		refunded: make(map[string]bool),
		Faults:   NoFaults{},
	}
	for _, a := range blockedAccounts {
		p.blocked[a] = true
	}
	return p
}

// Charge captures amount against account.
func (p *Payments) Charge(ctx context.Context, account string, amount float64) (Payment, error) {
	pause(p.Latency)
	if err := ctx.Err(); err != nil {
		return Payment{}, Transient("payments.charge", err)
	}
	if err := p.Faults.Fault("payments.charge"); err != nil {
		return Payment{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.blocked[account] {
		return Payment{}, Business("payments.charge", CodePaymentBlocked, "account %q is blocked", account)
	}
	pay := Payment{ID: uuid.NewString(), Account: account, Amount: amount}
	p.captured[pay.ID] = pay
	return pay, nil
}

// Refund reverses a captured charge and returns the refunded amount.
// Refunding twice is a business failure.
func (p *Payments) Refund(ctx context.Context, paymentID string) (float64, error) {
	pause(p.Latency)
	if err := ctx.Err(); err != nil {
		return 0, Transient("payments.refund", err)
	}
	if err := p.Faults.Fault("payments.refund"); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pay, ok := p.captured[paymentID]
	if !ok {
		return 0, Business("payments.refund", CodeNotFound, "unknown payment %q", paymentID)
	}
	if p.refunded[paymentID] {
		return 0, Business("payments.refund", CodeNotFound, "payment %q already refunded", paymentID)
	}
	p.refunded[paymentID] = true
	return pay.Amount, nil
}

// Refunded reports whether a payment has been reversed.
func (p *Payments) Refunded(paymentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refunded[paymentID]
}
