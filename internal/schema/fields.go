package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Field coercion helpers for the generic map[string]interface{} values
// encoding/json produces. Models are loose with types, so numbers may
// arrive as strings with currency symbols and vice versa.

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getNumberField(m map[string]interface{}, key string, required bool) (float64, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return 0, false, fmt.Errorf("missing required field %q", key)
		}
		return 0, false, nil
	}
	f, err := coerceNumber(v)
	if err != nil {
		return 0, false, fmt.Errorf("field %q: %w", key, err)
	}
	return f, true, nil
}

// coerceNumber accepts JSON numbers and numeric strings with currency
// symbols or thousands separators.
func coerceNumber(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		cleaned := strings.TrimSpace(val)
		cleaned = strings.ReplaceAll(cleaned, "$", "")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("has type %T, want number", v)
	}
}

func getStringList(m map[string]interface{}, key string, maxItems, maxLen int) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	var out []string
	switch val := v.(type) {
	case string:
		for _, line := range strings.Split(val, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				out = append(out, truncate(s, maxLen))
			}
		}
	case []interface{}:
		for _, item := range val {
			s := strings.TrimSpace(fmt.Sprintf("%v", item))
			if s != "" {
				out = append(out, truncate(s, maxLen))
			}
		}
	}
	if len(out) > maxItems {
		out = out[:maxItems]
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func round2(f float64) float64 {
	if f < 0 {
		return float64(int64(f*100-0.5)) / 100
	}
	return float64(int64(f*100+0.5)) / 100
}
