package orders

import "strconv"

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicOrderProof         = "order.proof.attached"
	TopicStockReserved      = "order.stock.reserved"
	TopicStockRejected      = "order.stock.rejected"
	TopicStockReleased      = "order.stock.released"
)

// PartitionKey keeps every event of one order on the same partition.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
