package transport

import (
	"github.com/invopop/jsonschema"
)

// Schemas returns the JSON schema of every wire message keyed by direction
// and name.
func Schemas() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return map[string]*jsonschema.Schema{
		"upstream.text":   reflector.Reflect(&TextMessage{}),
		"upstream.image":  reflector.Reflect(&ImageMessage{}),
		"downstream.text": reflector.Reflect(&ServerMessage{}),
	}
}
