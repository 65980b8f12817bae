package orders

const (
	TopicOrderCheckedOut  = "order.checked_out"
	TopicOrderPaid        = "order.paid"
	TopicOrderCancelled   = "order.cancelled"
	TopicPaymentConfirmed = "payment.confirmed"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
