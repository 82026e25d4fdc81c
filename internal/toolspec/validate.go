package toolspec

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validate checks argsJSON against t.Schema, compiling the schema fresh on
// every call. This mirrors goadesign-goa-ai's
// validatePayloadJSONAgainstSchema, which is itself called once per
// invocation rather than caching compiled schemas — acceptable here since
// Zen's tool set is small and fixed per process lifetime.
func (t Tool) Validate(argsJSON []byte) error {
	if len(t.Schema) == 0 {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(t.Schema, &schemaDoc); err != nil {
		return fmt.Errorf("toolspec: unmarshal schema for %q: %w", t.Name, err)
	}
	var argsDoc any
	if err := json.Unmarshal(argsJSON, &argsDoc); err != nil {
		return fmt.Errorf("toolspec: unmarshal arguments for %q: %w", t.Name, err)
	}

	c := jsonschema.NewCompiler()
	resourceName := t.Name + ".schema.json"
	if err := c.AddResource(resourceName, schemaDoc); err != nil {
		return fmt.Errorf("toolspec: add schema resource for %q: %w", t.Name, err)
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("toolspec: compile schema for %q: %w", t.Name, err)
	}
	if err := schema.Validate(argsDoc); err != nil {
		return err
	}

	if t.StrictSchema {
		if err := rejectUnknownFields(schemaDoc, argsDoc); err != nil {
			return err
		}
	}
	return nil
}

// rejectUnknownFields fails when argsDoc carries a top-level property the
// schema does not declare, for tools that opt into strict mode
// (spec.md §4.7 step 1: "reject unknown fields if the tool opts into
// strict mode"). jsonschema/v6 only enforces this when the schema itself
// sets additionalProperties:false; this is the fallback for schemas built
// via BuildSchema, which do not set it.
func rejectUnknownFields(schemaDoc, argsDoc any) error {
	schemaMap, ok := schemaDoc.(map[string]any)
	if !ok {
		return nil
	}
	argsMap, ok := argsDoc.(map[string]any)
	if !ok {
		return nil
	}
	props, _ := schemaMap["properties"].(map[string]any)
	for field := range argsMap {
		if _, declared := props[field]; !declared {
			return fmt.Errorf("toolspec: unknown field %q not permitted in strict mode", field)
		}
	}
	return nil
}
