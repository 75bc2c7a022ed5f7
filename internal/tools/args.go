package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"bizassist/internal/model"
)

func allowed(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func assertNoUnknownArguments(args map[string]interface{}, allowed map[string]struct{}) error {
	for key := range args {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("unknown argument: %s", key)
		}
	}
	return nil
}

func parseRequiredString(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%s is required", key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return value, nil
}

func parseOptionalString(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(value), nil
}

func parseOptionalBool(args map[string]interface{}, key string, defaultValue bool) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return defaultValue, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return v, nil
}

// parseNumber accepts JSON numbers and numeric strings; models emit both.
func parseNumber(value interface{}, field string) (float64, error) {
	var v float64
	switch typed := value.(type) {
	case float64:
		v = typed
	case float32:
		v = float64(typed)
	case int:
		v = float64(typed)
	case int64:
		v = float64(typed)
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", field)
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", field)
		}
		v = f
	default:
		return 0, fmt.Errorf("%s must be a number", field)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number", field)
	}
	return v, nil
}

func parseRequiredNumber(args map[string]interface{}, key string) (float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	return parseNumber(raw, key)
}

func parseOptionalNumberWithPresence(args map[string]interface{}, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	v, err := parseNumber(raw, key)
	return v, true, err
}

func parseInteger(value interface{}, field string) (int, error) {
	v, err := parseNumber(value, field)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	if math.Trunc(v) != v {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%s is out of range", field)
	}
	return int(v), nil
}

func parseOptionalIntegerWithPresence(args map[string]interface{}, key string) (int, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	v, err := parseInteger(raw, key)
	if err != nil {
		return 0, true, err
	}
	return v, true, nil
}

func parseOptionalDate(args map[string]interface{}, key string) (string, error) {
	s, err := parseOptionalString(args, key)
	if err != nil || s == "" {
		return "", err
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return "", fmt.Errorf("%s: %v", key, err)
	}
	return model.FormatDate(d), nil
}

func parseOptionalCurrency(args map[string]interface{}, key string) (model.Currency, error) {
	s, err := parseOptionalString(args, key)
	if err != nil || s == "" {
		return "", err
	}
	c, ok := model.ParseCurrency(s)
	if !ok {
		return "", fmt.Errorf("%s must be one of %s", key, joinCurrencies())
	}
	return c, nil
}

func parseOptionalPersona(args map[string]interface{}, key string) (model.Persona, error) {
	s, err := parseOptionalString(args, key)
	if err != nil || s == "" {
		return "", err
	}
	return model.ParsePersona(s), nil
}

func parseLineItems(args map[string]interface{}, key string) ([]model.LineItem, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%s is required", key)
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an array of objects", key)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%s must contain at least one item", key)
	}
	itemKeys := allowed("description", "qty", "unit_price")
	out := make([]model.LineItem, 0, len(list))
	for idx, entry := range list {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be an object", key, idx)
		}
		if err := assertNoUnknownArguments(obj, itemKeys); err != nil {
			return nil, fmt.Errorf("%s[%d]: %v", key, idx, err)
		}
		desc, err := parseRequiredString(obj, "description")
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %v", key, idx, err)
		}
		qty, err := parseRequiredNumber(obj, "qty")
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %v", key, idx, err)
		}
		price, err := parseRequiredNumber(obj, "unit_price")
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %v", key, idx, err)
		}
		if qty < 0 || price < 0 {
			return nil, fmt.Errorf("%s[%d]: qty and unit_price must not be negative", key, idx)
		}
		out = append(out, model.LineItem{Description: desc, Quantity: qty, UnitPrice: price})
	}
	return out, nil
}

func joinCurrencies() string {
	parts := make([]string, 0, len(model.Currencies))
	for _, c := range model.Currencies {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ", ")
}

// invalid wraps a parse failure as an InvalidArgument tool error.
func invalid(err error) *model.Error {
	if err == nil {
		return nil
	}
	return model.InvalidArgument("%s", err.Error())
}
