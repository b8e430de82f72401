package feed

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// PageError reports that a whole page could not be produced. No partial page
// accompanies it.
type PageError struct {
	Op  string
	Err error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Retryable is false only when the caller itself gave up on the request.
func (e *PageError) Retryable() bool {
	return !errors.Is(e.Err, context.Canceled)
}
