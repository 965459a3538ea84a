package validation

import (
	"strings"

	"lvcs/internal/errors"
)

// ValidateTag checks that tag can name a manifest file.
func ValidateTag(tag string) error {
	if tag == "" {
		return errors.InvalidTag(tag, "tag is required")
	}
	if strings.HasPrefix(tag, ".") {
		return errors.InvalidTag(tag, "tag must not start with '.'")
	}
	if strings.ContainsAny(tag, `/\`) || strings.ContainsRune(tag, 0) {
		return errors.InvalidTag(tag, "tag must not contain path separators")
	}
	return nil
}
