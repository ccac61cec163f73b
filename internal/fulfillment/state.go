package fulfillment

// State is a saga step. States live only in memory for the duration of one
// CreateOrder call and are never persisted.
type State string

const (
	StateValidating        State = "VALIDATING"
	StateResolvingUser     State = "RESOLVING_USER"
	StatePricingItems      State = "PRICING_ITEMS"
	StateProcessingPayment State = "PROCESSING_PAYMENT"
	StateReservingStock    State = "RESERVING_STOCK"
	StatePersisting        State = "PERSISTING"
	StateCompensating      State = "COMPENSATING"
	StateCompleted         State = "COMPLETED"
	StateFailed            State = "FAILED"
)

var validNext = map[State]map[State]bool{
	StateValidating:        {StateResolvingUser: true, StateFailed: true},
	StateResolvingUser:     {StatePricingItems: true, StateFailed: true},
	StatePricingItems:      {StateProcessingPayment: true, StateFailed: true},
	StateProcessingPayment: {StateReservingStock: true, StateCompensating: true, StateFailed: true},
	StateReservingStock:    {StatePersisting: true, StateCompensating: true},
	StatePersisting:        {StateCompleted: true, StateCompensating: true},
	StateCompensating:      {StateFailed: true},
	StateCompleted:         {},
	StateFailed:            {},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}
