package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/knowledge"
)

func getStringArg(args map[string]interface{}, key string) string {
	return getStringFromMap(args, key)
}

func getStringFromMap(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getIntArg(args map[string]interface{}, key string, fallback int) int {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// getBoolArg extracts a boolean argument with default.
func getBoolArg(args map[string]interface{}, key string, fallback bool) bool {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return fallback
}

// getIntentArg reads a task intent object. Scalar values are stringified;
// nulls and nested values are rejected.
func getIntentArg(args map[string]interface{}, key string) (knowledge.TaskIntent, error) {
	intent, err := getIntentValues(args, key)
	if err != nil {
		return nil, err
	}
	if intent.Action() == "" {
		return nil, fmt.Errorf("%s needs an action or category", key)
	}
	return intent, nil
}

// getIntentValues reads an object of string values without requiring an action.
func getIntentValues(args map[string]interface{}, key string) (knowledge.TaskIntent, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return nil, fmt.Errorf("%s is required", key)
	}
	raw, ok := val.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an object of string values", key)
	}
	intent := make(knowledge.TaskIntent, len(raw))
	for k, v := range raw {
		switch value := v.(type) {
		case string:
			intent[k] = value
		case float64, int, int64, bool:
			intent[k] = fmt.Sprintf("%v", value)
		default:
			return nil, fmt.Errorf("%s.%s must be a string", key, k)
		}
	}
	return intent, nil
}

// getElementsArg reads an inline snapshot: either "elements" (an array of
// element objects) or "elements_text" (the serialized line format).
// ok is false when neither is present.
func getElementsArg(args map[string]interface{}) (elements []element.PageElement, ok bool, err error) {
	if raw, present := args["elements"]; present && raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, true, fmt.Errorf("elements: %w", err)
		}
		if err := json.Unmarshal(data, &elements); err != nil {
			return nil, true, fmt.Errorf("elements must be an array of {index, tag_name, text, attributes}: %w", err)
		}
		if elements == nil {
			elements = []element.PageElement{}
		}
		return elements, true, nil
	}
	if text := getStringArg(args, "elements_text"); strings.TrimSpace(text) != "" {
		return element.ParseSnapshot(text), true, nil
	}
	return nil, false, nil
}

func argString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []string:
		if len(value) == 0 {
			return ""
		}
		return value[0]
	default:
		return fmt.Sprintf("%v", value)
	}
}
