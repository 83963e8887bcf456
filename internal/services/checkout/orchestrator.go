// Package checkout orchestrates the multi-item coin basket flow: address
// management, payment method selection, GST and delivery totals, and the
// single pay action racing against the shared session deadline.
package checkout

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/entity"
	"github.com/aurumpay/goldengine/internal/services/payment"
	"github.com/aurumpay/goldengine/internal/services/session"
	"github.com/aurumpay/goldengine/internal/services/trade"
)

// Stage is the orchestrator's position in its linear flow.
type Stage int

const (
	// StageAddress selects or adds a delivery address
	StageAddress Stage = iota
	// StagePayment selects a payment method
	StagePayment
	// StageConfirmation reviews totals and exposes the pay action
	StageConfirmation
	// StageExpired is terminal: the session deadline passed while the
	// checkout was open
	StageExpired
)

func (s Stage) String() string {
	switch s {
	case StageAddress:
		return "address"
	case StagePayment:
		return "payment"
	case StageConfirmation:
		return "confirmation"
	case StageExpired:
		return "expired"
	default:
		return "unknown"
	}
}

var (
	// ErrExpired means the price-lock window closed; pay is disabled.
	ErrExpired = errors.New("checkout session expired")
	// ErrEmptyBasket means there is nothing to pay for.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrWrongStage means the operation is not allowed in this stage.
	ErrWrongStage = errors.New("operation not allowed in current stage")
	// ErrNoAddress means no delivery address has been selected.
	ErrNoAddress = errors.New("no delivery address selected")
)

// Orchestrator drives the basket checkout. It shares nothing with the
// basket's originating surface except the basket itself and the session
// coordinator; the two surfaces agree on expiry purely through the stored
// deadline.
type Orchestrator struct {
	mu          sync.Mutex
	logger      *zap.Logger
	basket      *entity.Basket
	coordinator *session.Coordinator
	watcher     *session.Watcher
	directory   payment.Directory
	userToken   string
	gstPercent  decimal.Decimal
	deliveryFee decimal.Decimal
	stage       Stage
	addresses   []entity.Address
	selected    int
	method      entity.PaymentMethod
	paid        bool
}

// New creates an orchestrator over the shared basket and registers its own
// expiry watcher on the basket-checkout purpose.
func New(basket *entity.Basket, coordinator *session.Coordinator, directory payment.Directory, userToken string, gstPercent, deliveryFee decimal.Decimal, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		logger:      logger,
		basket:      basket,
		coordinator: coordinator,
		directory:   directory,
		userToken:   userToken,
		gstPercent:  gstPercent,
		deliveryFee: deliveryFee,
		selected:    -1,
	}
	o.watcher = coordinator.Watch(session.PurposeBasketCheckout, o.expire)
	return o
}

// Watcher returns the orchestrator's expiry watcher so the surface's tick
// loop can drive it (or hand it to Watcher.Run).
func (o *Orchestrator) Watcher() *session.Watcher {
	return o.watcher
}

// expire is the one-time expiry side effect. Clearing an already-empty
// basket is a no-op, so racing the originating surface is harmless.
func (o *Orchestrator) expire() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.paid {
		return
	}
	o.stage = StageExpired
	o.basket.Clear()
	o.logger.Info("checkout session expired, basket cleared")
}

// Stage returns the current stage, first giving the watcher a chance to
// observe an expiry that happened since the last interaction.
func (o *Orchestrator) Stage() Stage {
	o.watcher.Poll()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// RemainingSeconds is the countdown shown in the checkout header. It is
// recomputed from the stored deadline on every call so it matches the
// basket drawer's countdown.
func (o *Orchestrator) RemainingSeconds() int {
	return o.coordinator.RemainingSeconds(session.PurposeBasketCheckout)
}

// AddAddress appends a delivery address and selects it.
func (o *Orchestrator) AddAddress(addr entity.Address) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.addresses = append(o.addresses, addr)
	o.selected = len(o.addresses) - 1
}

// SelectAddress picks a previously added address.
func (o *Orchestrator) SelectAddress(index int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index < 0 || index >= len(o.addresses) {
		return errors.Errorf("address index %d out of range", index)
	}
	o.selected = index
	return nil
}

// Addresses returns the address book.
func (o *Orchestrator) Addresses() []entity.Address {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]entity.Address, len(o.addresses))
	copy(out, o.addresses)
	return out
}

// Methods lists the available payment methods from the directory.
func (o *Orchestrator) Methods(ctx context.Context) ([]entity.PaymentMethod, error) {
	return o.directory.Methods(ctx, o.userToken)
}

// SelectMethod records the payment method during the payment stage.
func (o *Orchestrator) SelectMethod(method entity.PaymentMethod) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StagePayment {
		return ErrWrongStage
	}
	o.method = method
	return nil
}

// Next advances address -> payment -> confirmation.
func (o *Orchestrator) Next() error {
	o.watcher.Poll()
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.stage {
	case StageAddress:
		if o.selected < 0 {
			return ErrNoAddress
		}
		o.stage = StagePayment
	case StagePayment:
		o.stage = StageConfirmation
	case StageExpired:
		return ErrExpired
	default:
		return ErrWrongStage
	}
	return nil
}

// Back returns to the address stage from any later non-terminal stage.
func (o *Orchestrator) Back() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.stage {
	case StagePayment, StageConfirmation:
		o.stage = StageAddress
	case StageExpired:
		return ErrExpired
	default:
		return ErrWrongStage
	}
	return nil
}

// Subtotal sums the basket lines.
func (o *Orchestrator) Subtotal() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.basket.Total()
}

// GST returns the GST portion of the subtotal, unrounded.
func (o *Orchestrator) GST() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return trade.GSTAmount(o.basket.Total(), o.gstPercent)
}

// Total returns subtotal + GST + flat delivery fee, unrounded. Display
// rounding happens at the presentation layer only.
func (o *Orchestrator) Total() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	subtotal := o.basket.Total()
	return subtotal.Add(trade.GSTAmount(subtotal, o.gstPercent)).Add(o.deliveryFee)
}

// Pay performs the single pay action: it clears the basket and the stored
// session deadline. Atomicity across the two stores is best-effort; the
// basket clears first so a crash in between leaves only a harmless stale
// deadline behind.
func (o *Orchestrator) Pay(ctx context.Context) error {
	if o.watcher.Poll() {
		return ErrExpired
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stage == StageExpired {
		return ErrExpired
	}
	if o.stage != StageConfirmation {
		return ErrWrongStage
	}
	if o.basket.IsEmpty() {
		return ErrEmptyBasket
	}

	total := o.basket.Total()
	o.basket.Clear()
	o.coordinator.Clear(session.PurposeBasketCheckout)
	o.paid = true
	o.logger.Info("basket checkout paid",
		zap.String("total", total.String()),
		zap.String("method", o.method.Type))
	return nil
}
