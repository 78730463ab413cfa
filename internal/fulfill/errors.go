package fulfill

import "errors"

var (
	// ErrAlreadyProcessed: the order is missing or past pending. Terminal;
	// the message is acknowledged with no compensation.
	ErrAlreadyProcessed = errors.New("order already processed")

	// ErrInsufficientStock: no single offer covers a line, or a guarded
	// decrement lost its race. Retriable.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Terminal reports whether err should never be retried.
func Terminal(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}
