package health

import (
	"context"
	"fmt"
	"slices"
)

// Configured returns a Checker that fails while value() is empty. Use it for
// settings that can change at runtime, such as a provider name after a
// configuration reload.
func Configured(name string, value func() string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if value() == "" {
				return fmt.Errorf("%s not configured", name)
			}
			return nil
		},
	}
}

// State returns a Checker that fails while state() is one of bad.
func State(name string, state func() string, bad ...string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if s := state(); slices.Contains(bad, s) {
				return fmt.Errorf("%s is %s", name, s)
			}
			return nil
		},
	}
}

// Available returns a Checker that fails while ok() reports false, such as a
// provider chain whose circuit breakers are all open.
func Available(name string, ok func() bool) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if !ok() {
				return fmt.Errorf("%s unavailable", name)
			}
			return nil
		},
	}
}
