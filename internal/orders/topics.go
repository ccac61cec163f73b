package orders

const (
	TopicOrderPlaced  = "order.placed"
	TopicOrderAborted = "order.aborted"
)

// Partition key = order_id so every event of one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
