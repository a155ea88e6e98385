package constraintmonitor

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface required for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the constraint-monitor component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "constraint-monitor",
		Factory:     NewComponent,
		Schema:      constraintMonitorSchema,
		Type:        "processor",
		Protocol:    "stream",
		Domain:      "claimwatch",
		Description: "Evaluates property constraints over knowledge-graph edit bursts",
		Version:     "0.1.0",
	})
}
