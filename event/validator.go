package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates event payloads against the per-type JSON Schemas.
type Validator struct {
	mu    sync.RWMutex
	cache map[Type]*jsonschema.Schema
}

// NewValidator creates a new payload validator.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[Type]*jsonschema.Schema),
	}
}

// Validate checks that data conforms to the payload shape registered for t.
// Returns ErrUnknownType for types outside the enumeration and
// ErrPayloadInvalid (wrapped with detail) on schema violations.
//
// Data may be any JSON-marshalable value; it is normalized through JSON
// before validation so typed payload structs and raw maps behave the same.
func (v *Validator) Validate(t Type, data any) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownType, t)
	}

	compiled, err := v.compile(t)
	if err != nil {
		return fmt.Errorf("event: compile schema for %s: %w", t, err)
	}

	normalized, err := normalize(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPayloadInvalid, err.Error())
	}

	if validateErr := compiled.Validate(normalized); validateErr != nil {
		return fmt.Errorf("%w: %s", ErrPayloadInvalid, validateErr.Error())
	}
	return nil
}

// compile returns the compiled schema for t, using the cache after first use.
func (v *Validator) compile(t Type) (*jsonschema.Schema, error) {
	v.mu.RLock()
	if cached, ok := v.cache[t]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	raw, ok := payloadSchemas[t]
	if !ok {
		return nil, fmt.Errorf("no schema registered for %s", t)
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := "gateway://schema/" + string(t)

	c := jsonschema.NewCompiler()
	if addErr := c.AddResource(url, doc); addErr != nil {
		return nil, fmt.Errorf("add schema resource: %w", addErr)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	v.cache[t] = compiled
	v.mu.Unlock()

	return compiled, nil
}

// normalize round-trips data through JSON so structs, raw messages, and maps
// all validate identically.
func normalize(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
