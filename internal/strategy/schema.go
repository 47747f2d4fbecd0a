package strategy

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// ToJSONSchema reflects the parameters of a strategy into an inlined JSON schema.
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "failed to marshal strategy schema", err)
	}

	return string(jsonSchemaBytes), nil
}

// Schemas maps each built-in strategy name to the schema of its parameters.
func Schemas() (map[string]string, error) {
	sma, err := ToJSONSchema(SMACrossover{})
	if err != nil {
		return nil, err
	}

	return map[string]string{
		(&SMACrossover{}).Name(): sma,
	}, nil
}
