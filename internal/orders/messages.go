package orders

import "strconv"

// TopicFulfill carries one message per fulfillment attempt. Retries are
// explicit re-publishes with the counter bumped, never in-place requeues.
const TopicFulfill = "orders.fulfill"

// FulfillMessage is the pipeline's only wire contract. A missing retry field
// decodes to 0, which is the first attempt.
type FulfillMessage struct {
	OrderID int64 `json:"orderId"`
	Retry   int   `json:"retry"`
}

// Partition key = order id, so attempts for one order stay ordered.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
