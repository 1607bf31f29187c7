package draft

import (
	"errors"
	"fmt"
	"strings"

	"civico/backend/internal/models"
)

// ErrNotFound covers both absent drafts and drafts owned by someone else.
var ErrNotFound = errors.New("draft not found")

// ErrExpired marks an edit or discard attempted on a draft past its TTL.
// Expired drafts must finalize (or surface as incomplete), never silently
// vanish.
var ErrExpired = errors.New("draft expired")

// ValidationError is returned by the finalizer when mandatory fields are
// missing. It carries the current field snapshot so the caller can ask for
// exactly what is absent.
type ValidationError struct {
	Missing []string
	Fields  models.FieldMap
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("draft incomplete: missing %s", strings.Join(e.Missing, ", "))
}
