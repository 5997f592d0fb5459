package cache

import (
	"fmt"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
)

// FetchError reports a failed remote read. The Local Store is left untouched.
type FetchError struct {
	Collection models.Collection
	ID         string
	Err        error
}

func (e *FetchError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("fetch %s: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("fetch %s/%s: %v", e.Collection, e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
