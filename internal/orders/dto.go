package orders

import (
	"github.com/belanjaid/storefront-backend/pkg/enums"
)

// UpdateInput is a partial patch of the mutable order fields. Nil or empty
// fields leave the current value untouched.
type UpdateInput struct {
	OrderStatus   *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
}

func (u UpdateInput) empty() bool {
	return (u.OrderStatus == nil || *u.OrderStatus == "") &&
		(u.PaymentStatus == nil || *u.PaymentStatus == "")
}
