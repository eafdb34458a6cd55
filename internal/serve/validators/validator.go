package validators

import (
	"fmt"
	"unicode/utf8"
)

// Validator collects the field errors of a request. Errors are rendered as the extras of a 400 response, and only the
// first failed check of each field is kept.
type Validator struct {
	Errors map[string]interface{}
}

func NewValidator() *Validator {
	return &Validator{
		Errors: make(map[string]interface{}),
	}
}

func (v *Validator) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.addError(key, message)
	}
}

// CheckError records err under key. An empty message falls back to the error text.
func (v *Validator) CheckError(err error, key, message string) *Validator {
	if err != nil && message == "" {
		message = err.Error()
	}
	v.Check(err == nil, key, message)
	return v
}

// CheckMaxLength counts characters, not bytes, so accented school names get the same limit as ASCII ones.
func (v *Validator) CheckMaxLength(value, key string, limit int) {
	v.Check(utf8.RuneCountInString(value) <= limit, key, fmt.Sprintf("%s must have at most %d characters", key, limit))
}

func (v *Validator) addError(key, message string) {
	if _, exists := v.Errors[key]; exists {
		return
	}
	v.Errors[key] = message
}
