package credits

import (
	"errors"
	"fmt"
)

// ErrNoBalance is returned when a user has no credit record yet. Callers
// treat this as a zero balance.
var ErrNoBalance = errors.New("no credit balance record")

// InsufficientCreditsError is returned when a reserve or debit would
// overdraw the balance. It carries both sides of the comparison so the API
// can tell the client exactly how short the user is.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}
