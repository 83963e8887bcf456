// Package payment exposes the read-only payment method directory. Method
// selection is local UI state; the engine never talks to a gateway.
package payment

import (
	"context"

	"github.com/aurumpay/goldengine/internal/entity"
)

// Directory lists the payment methods available to a user.
type Directory interface {
	Methods(ctx context.Context, userToken string) ([]entity.PaymentMethod, error)
}

// StaticDirectory serves a fixed method list, the shape a remote directory
// would return.
type StaticDirectory struct {
	methods []entity.PaymentMethod
}

// NewStaticDirectory returns a directory with the stock method set.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		methods: []entity.PaymentMethod{
			{Type: "upi", DisplayLabel: "UPI", IsPrimary: true},
			{Type: "card", DisplayLabel: "Credit / Debit Card"},
			{Type: "netbanking", DisplayLabel: "Net Banking"},
		},
	}
}

func (d *StaticDirectory) Methods(_ context.Context, _ string) ([]entity.PaymentMethod, error) {
	out := make([]entity.PaymentMethod, len(d.methods))
	copy(out, d.methods)
	return out, nil
}
