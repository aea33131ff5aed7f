package errors

import (
	"strings"
	"unicode"
)

// maxNameLength bounds design object names.
const maxNameLength = 256

// ValidateName checks a design object name (instance, net, master or block
// terminal). kind names the object in the error message.
//
// Names must be non-empty, at most 256 bytes, free of control characters and
// whitespace. Hierarchy separators and bus brackets are allowed.
func ValidateName(kind, name string) error {
	if name == "" {
		return New(ErrCodeInvalidDesign, "%s name cannot be empty", kind)
	}
	if len(name) > maxNameLength {
		return New(ErrCodeInvalidDesign, "%s name too long (max %d characters)", kind, maxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidDesign, "%s name %q contains whitespace or control characters", kind, name)
		}
	}
	return nil
}

// ValidatePath checks a user supplied file path.
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidConfig, "path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return New(ErrCodeInvalidConfig, "path contains a null byte")
	}
	return nil
}
