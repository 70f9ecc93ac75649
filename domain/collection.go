package domain

import (
	"flash-chat/errors"
	"fmt"
	"strings"
)

// CollectionSeparator splits the collection from the record key in the
// storage layouts, so it cannot appear in a collection name.
const CollectionSeparator = ":"

// ValidateCollection checks a collection name before any log uses it.
func ValidateCollection(name string) error {
	if name == "" {
		return errors.ErrEmptyCollection
	}
	if strings.Contains(name, CollectionSeparator) {
		return fmt.Errorf("%w: %q contains %q", errors.ErrInvalidCollection, name, CollectionSeparator)
	}
	return nil
}
