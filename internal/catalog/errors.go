package catalog

import (
	"fmt"

	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
)

// BatchError carries per-row validation messages for a batch create.
// Keys look like "rows[2].slug". No row is written when any row fails.
type BatchError struct {
	Rows map[string]string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("catalog: %d invalid rows", len(e.Rows))
}

// Unwrap lets handlers map a BatchError to a 400 response.
func (e *BatchError) Unwrap() error {
	return httpx.ErrValidation
}
