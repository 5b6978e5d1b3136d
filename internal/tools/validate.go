package tools

import "fmt"

// Argument extraction helpers. Each returns an error when the declared
// schema is violated; those errors surface to the client as JSON-RPC
// invalid-params errors, never as tool results.

func stringArg(args map[string]any, name string, required bool) (string, error) {
	raw, present := args[name]
	if !present || raw == nil {
		if required {
			return "", fmt.Errorf("%s is required", name)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}
	if required && s == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return s, nil
}

func enumArg(args map[string]any, name string, allowed []string) (string, error) {
	s, err := stringArg(args, name, false)
	if err != nil || s == "" {
		return s, err
	}
	for _, a := range allowed {
		if a == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("%s must be one of %v, got %q", name, allowed, s)
}

// numberArg returns def when the argument is absent. JSON numbers arrive as
// float64.
func numberArg(args map[string]any, name string, min, max, def float64) (float64, error) {
	raw, present := args[name]
	if !present || raw == nil {
		return def, nil
	}
	n, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %v and %v", name, min, max)
	}
	return n, nil
}

func boolArg(args map[string]any, name string) (bool, error) {
	raw, present := args[name]
	if !present || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}

func stringSliceArg(args map[string]any, name string) ([]string, error) {
	raw, present := args[name]
	if !present || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of strings", name)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be an array of strings", name)
		}
		out = append(out, s)
	}
	return out, nil
}
