package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
)

// transformModelOutput decodes the raw engine text into Fields. Any output
// that is not a JSON object with correctly typed fields is an engine error.
func transformModelOutput(raw string) (Fields, error) {
	clean := cleanModelJSON(raw)

	var parsed interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return Fields{}, fmt.Errorf("transformModelOutput: %w: unmarshal JSON: %w", common.ErrExtractionEngine, err)
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return Fields{}, fmt.Errorf("transformModelOutput: %w: output is %T, want object", common.ErrExtractionEngine, parsed)
	}

	var (
		f   Fields
		err error
	)
	if f.Description, err = getOptionalStringField(obj, fieldDescription); err != nil {
		return Fields{}, fmt.Errorf("transformModelOutput: %w: %w", common.ErrExtractionEngine, err)
	}
	if f.Amount, err = getOptionalFloat64Field(obj, fieldPrice); err != nil {
		return Fields{}, fmt.Errorf("transformModelOutput: %w: %w", common.ErrExtractionEngine, err)
	}
	if f.Category, err = getRawStringField(obj, fieldCategory); err != nil {
		return Fields{}, fmt.Errorf("transformModelOutput: %w: %w", common.ErrExtractionEngine, err)
	}
	return f, nil
}

// classify maps Fields onto a Result. A category outside the fixed set is an
// engine error whatever the other fields hold.
func classify(f Fields) (Result, error) {
	var category Category
	if f.Category != nil {
		c, ok := ParseCategory(*f.Category)
		if !ok {
			return nil, fmt.Errorf("classify: %w: unknown category %q", common.ErrExtractionEngine, *f.Category)
		}
		category = c
	}

	switch f.present() {
	case 0:
		return Invalid{}, nil
	case 3:
		return Complete{Expense: Expense{
			Description: *f.Description,
			Amount:      *f.Amount,
			Category:    category,
		}}, nil
	default:
		return Incomplete{Fields: f}, nil
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

// getRawStringField is getOptionalStringField without trimming, so an empty
// or padded value stays present.
func getRawStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
	return &s, nil
}

func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f, nil
	case int:
		f := float64(val)
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}
