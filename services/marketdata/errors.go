package marketdata

import "fmt"

// InsufficientDataError reports a series shorter than the minimum lookback
// the caller requires. Callers match it with errors.As.
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d bars, have %d", e.Need, e.Have)
}
