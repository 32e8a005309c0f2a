package properties

import "fmt"

// Configurator holds the event properties defined directly on one target.
//
// A Configurator is not synchronized. The target tree guards every
// configurator with its own lock so that ancestor walks see one snapshot.
type Configurator struct {
	limits Limits
	own    map[string]string
}

// NewConfigurator returns an empty configurator enforcing limits.
func NewConfigurator(limits Limits) *Configurator {
	return &Configurator{
		limits: limits,
		own:    make(map[string]string),
	}
}

// SetProperty stores or overwrites name. Nothing is mutated on error.
func (c *Configurator) SetProperty(name, value string) error {
	if err := c.limits.ValidateName(name); err != nil {
		return err
	}
	if err := c.limits.ValidateValue(name, value); err != nil {
		return err
	}
	if _, exists := c.own[name]; !exists && c.limits.MaxProperties > 0 && len(c.own) >= c.limits.MaxProperties {
		return fmt.Errorf("%w: target already defines %d properties", ErrInvalidProperty, len(c.own))
	}
	c.own[name] = value
	return nil
}

// RemoveProperty drops the local override for name. Missing names are ignored.
func (c *Configurator) RemoveProperty(name string) {
	delete(c.own, name)
}

func (c *Configurator) Property(name string) (string, bool) {
	v, ok := c.own[name]
	return v, ok
}

func (c *Configurator) Len() int {
	return len(c.own)
}

// Own returns a copy of the locally defined properties.
func (c *Configurator) Own() map[string]string {
	out := make(map[string]string, len(c.own))
	for k, v := range c.own {
		out[k] = v
	}
	return out
}

// Resolve merges chain ordered root first and self last. For every name the
// value from the entry closest to the end of chain wins. Nil entries are skipped.
func Resolve(chain ...*Configurator) map[string]string {
	out := make(map[string]string)
	for _, c := range chain {
		if c == nil {
			continue
		}
		for k, v := range c.own {
			out[k] = v
		}
	}
	return out
}

// Merge overlays overrides onto a copy of base.
func Merge(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
