package encoders

import "github.com/smazurov/hwcodec/internal/encoders/validation"

// CreateValidatorRegistry creates the registry of vendor validators in
// selection priority order.
func CreateValidatorRegistry() *validation.ValidatorRegistry {
	return validation.DefaultRegistry()
}
