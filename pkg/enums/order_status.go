package enums

import "fmt"

// OrderStatus tracks a bill after the reservation engine created it.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "inprogress"
	OrderStatusPacked     OrderStatus = "packed"
	OrderStatusBillSent   OrderStatus = "bill_sent"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// validOrderStatuses is ordered by lifecycle position.
var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusInProgress,
	OrderStatusPacked,
	OrderStatusBillSent,
	OrderStatusDelivered,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	return o.rank() >= 0
}

// CanAdvanceTo reports whether next is strictly later in the lifecycle.
func (o OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	from, to := o.rank(), next.rank()
	return from >= 0 && to >= 0 && to > from
}

func (o OrderStatus) rank() int {
	for i, candidate := range validOrderStatuses {
		if candidate == o {
			return i
		}
	}
	return -1
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
