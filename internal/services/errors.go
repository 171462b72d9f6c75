package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoApplicableSize matches every *NoApplicableSizeError via errors.Is.
var ErrNoApplicableSize = errors.New("no applicable size")

// NoApplicableSizeError reports measurements the size chart can't place.
// Nothing is written when it is returned.
type NoApplicableSizeError struct {
	ChildID uint
	Weight  string
	Height  string
}

func (e *NoApplicableSizeError) Error() string {
	if e.ChildID == 0 {
		return fmt.Sprintf("no applicable size for weight %q, height %q", e.Weight, e.Height)
	}
	return fmt.Sprintf("child %d: no applicable size for weight %q, height %q", e.ChildID, e.Weight, e.Height)
}

func (e *NoApplicableSizeError) Is(target error) bool {
	return target == ErrNoApplicableSize
}

// ValidationErrors maps a form field name to what is wrong with it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
