package clipper

import "fmt"

// InputError rejects a request before any external call is made.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

// ConfigError reports missing service configuration, detected before the
// pipeline reaches the network.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("configuration error: %s", e.Reason) }
