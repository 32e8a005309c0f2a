package properties

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrInvalidProperty = errors.New("properties: invalid property")

// Limits bounds property names, values and the number of properties per map.
// Zero fields disable that bound.
type Limits struct {
	MaxNameLength  int
	MaxValueLength int
	MaxProperties  int
}

// DefaultLimits mirrors the event property limits enforced by the ingestion backend.
func DefaultLimits() Limits {
	return Limits{
		MaxNameLength:  125,
		MaxValueLength: 125,
		MaxProperties:  20,
	}
}

// ValidateName checks one property name.
func (l Limits) ValidateName(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: name %q is not valid UTF-8", ErrInvalidProperty, name)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProperty)
	}
	if l.MaxNameLength > 0 && utf8.RuneCountInString(name) > l.MaxNameLength {
		return fmt.Errorf("%w: name %q exceeds %d characters", ErrInvalidProperty, truncate(name), l.MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: name %q contains control characters", ErrInvalidProperty, truncate(name))
		}
	}
	return nil
}

// ValidateValue checks the value stored under name.
func (l Limits) ValidateValue(name, value string) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: value for %q is not valid UTF-8", ErrInvalidProperty, truncate(name))
	}
	if l.MaxValueLength > 0 && utf8.RuneCountInString(value) > l.MaxValueLength {
		return fmt.Errorf("%w: value for %q exceeds %d characters", ErrInvalidProperty, truncate(name), l.MaxValueLength)
	}
	return nil
}

// ValidateMap checks a call-site property map as a whole.
func (l Limits) ValidateMap(props map[string]string) error {
	if l.MaxProperties > 0 && len(props) > l.MaxProperties {
		return fmt.Errorf("%w: %d properties exceeds limit %d", ErrInvalidProperty, len(props), l.MaxProperties)
	}
	for name, value := range props {
		if err := l.ValidateName(name); err != nil {
			return err
		}
		if err := l.ValidateValue(name, value); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string) string {
	const max = 32
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
