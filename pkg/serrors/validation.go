package serrors

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/labx-platform/testbed/pkg/constants"
)

// ValidationErrors maps a struct field name to a human readable message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, v[k])
	}
	return strings.Join(parts, "; ")
}

// First returns the message of the alphabetically first field.
func (v ValidationErrors) First() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return v[keys[0]]
}

var ErrValidation = NewError("VALIDATION_FAILED", "validation failed", "")

// NewTranslator registers the English messages on validate and returns the translator.
func NewTranslator(validate *validator.Validate) (ut.Translator, error) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}
	return trans, nil
}

// ProcessValidatorErrors converts validator output into ValidationErrors.
// Non validator errors are reported under the "_" key.
func ProcessValidatorErrors(err error, trans ut.Translator) ValidationErrors {
	out := make(ValidationErrors)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := fe.StructNamespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if trans != nil {
			out[field] = fe.Translate(trans)
		} else {
			out[field] = fe.Error()
		}
	}
	return out
}

var (
	translatorOnce sync.Once
	translator     ut.Translator
)

// ValidateStruct runs the shared validator and returns nil when s is valid.
func ValidateStruct(s any) ValidationErrors {
	translatorOnce.Do(func() {
		translator, _ = NewTranslator(constants.Validate)
	})
	if err := constants.Validate.Struct(s); err != nil {
		return ProcessValidatorErrors(err, translator)
	}
	return nil
}
