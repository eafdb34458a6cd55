package formfields

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

// FieldErrors maps a field name to the reason its value was refused.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e[name]))
	}
	return "invalid form data: " + strings.Join(parts, "; ")
}

var ErrInvalidRules = errors.New("invalid validation rules")

// ValidateRules checks that rules make sense for the field type.
func ValidateRules(fieldType data.FieldType, rules data.ValidationRules) error {
	if err := fieldType.Validate(); err != nil {
		return err
	}
	if rules.MinLength != nil && *rules.MinLength < 0 {
		return fmt.Errorf("%w: min_length must not be negative", ErrInvalidRules)
	}
	if rules.MinLength != nil && rules.MaxLength != nil && *rules.MinLength > *rules.MaxLength {
		return fmt.Errorf("%w: min_length is greater than max_length", ErrInvalidRules)
	}
	if rules.Min != nil && rules.Max != nil && *rules.Min > *rules.Max {
		return fmt.Errorf("%w: min is greater than max", ErrInvalidRules)
	}
	if rules.Pattern != "" {
		if _, err := regexp.Compile(rules.Pattern); err != nil {
			return fmt.Errorf("%w: pattern does not compile: %v", ErrInvalidRules, err)
		}
	}
	if fieldType == data.FieldTypeSelect && len(rules.Options) == 0 {
		return fmt.Errorf("%w: select fields need options", ErrInvalidRules)
	}
	if fieldType != data.FieldTypeSelect && len(rules.Options) > 0 {
		return fmt.Errorf("%w: options only apply to select fields", ErrInvalidRules)
	}
	return nil
}

func validateValues(fields []data.FormField, values map[string]any) (data.JSONMap, error) {
	errs := FieldErrors{}
	known := make(map[string]bool, len(fields))
	formData := data.JSONMap{}

	for _, field := range fields {
		known[field.Name] = true
		value, present := values[field.Name]
		if !present || isBlank(value) {
			if field.IsRequired {
				errs[field.Name] = "is required"
			}
			continue
		}

		normalized, err := validateValue(field, value)
		if err != nil {
			errs[field.Name] = err.Error()
			continue
		}
		formData[field.Name] = normalized
	}

	for name := range values {
		if !known[name] {
			errs[name] = "is not a form field"
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return formData, nil
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func validateValue(field data.FormField, value any) (any, error) {
	rules := field.ValidationRules

	switch field.FieldType {
	case data.FieldTypeCheckbox:
		b, ok := value.(bool)
		if !ok {
			return nil, errors.New("must be true or false")
		}
		return b, nil

	case data.FieldTypeNumber:
		n, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		if rules.Min != nil && n < *rules.Min {
			return nil, fmt.Errorf("must be at least %s", strconv.FormatFloat(*rules.Min, 'f', -1, 64))
		}
		if rules.Max != nil && n > *rules.Max {
			return nil, fmt.Errorf("must be at most %s", strconv.FormatFloat(*rules.Max, 'f', -1, 64))
		}
		return n, nil
	}

	s, ok := value.(string)
	if !ok {
		return nil, errors.New("must be a string")
	}
	s = strings.TrimSpace(s)

	if err := checkLength(s, rules); err != nil {
		return nil, err
	}
	if rules.Pattern != "" {
		rx, err := regexp.Compile(rules.Pattern)
		if err != nil {
			return nil, fmt.Errorf("has an invalid pattern rule: %w", err)
		}
		if !rx.MatchString(s) {
			return nil, errors.New("does not match the expected format")
		}
	}

	switch field.FieldType {
	case data.FieldTypeEmail:
		if err := utils.ValidateEmail(s); err != nil {
			return nil, errors.New("must be a valid email")
		}
		return strings.ToLower(s), nil
	case data.FieldTypePhone:
		if err := utils.ValidatePhoneNumber(s); err != nil {
			return nil, errors.New("must be a phone number in the E.164 format")
		}
	case data.FieldTypeURL:
		if err := utils.ValidateURL(s); err != nil {
			return nil, errors.New("must be an http or https URL")
		}
	case data.FieldTypeDate:
		if err := utils.ValidateDate(s); err != nil {
			return nil, fmt.Errorf("must be a date in the %s format", utils.DateLayout)
		}
	case data.FieldTypeSelect:
		for _, option := range rules.Options {
			if s == option {
				return s, nil
			}
		}
		return nil, fmt.Errorf("must be one of %s", strings.Join(rules.Options, ", "))
	}
	return s, nil
}

func checkLength(s string, rules data.ValidationRules) error {
	length := utf8.RuneCountInString(s)
	if rules.MinLength != nil && length < *rules.MinLength {
		return fmt.Errorf("must have at least %d characters", *rules.MinLength)
	}
	if rules.MaxLength != nil && length > *rules.MaxLength {
		return fmt.Errorf("must have at most %d characters", *rules.MaxLength)
	}
	return nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		s := strings.TrimSpace(v)
		if !govalidator.IsFloat(s) {
			return 0, errors.New("must be a number")
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, errors.New("must be a number")
	}
}
