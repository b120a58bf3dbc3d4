package middlewares

import (
	"errors"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// DefaultValidator replaces gin's binding validator so request errors come
// back as readable English sentences.
type DefaultValidator struct {
	once       sync.Once
	validate   *validator.Validate
	translator ut.Translator
}

var _ binding.StructValidator = &DefaultValidator{}

// messages overrides the stock English translations for the tags the
// request DTOs use.
var messages = map[string]struct {
	text      string
	withParam bool
}{
	"required": {"{0} is required", false},
	"max":      {"{0} must be at most {1}", true},
	"min":      {"{0} must be at least {1}", true},
	"url":      {"{0} must be a valid URL", false},
	"gte":      {"{0} must be greater than or equal to {1}", true},
	"lte":      {"{0} must be less than or equal to {1}", true},
	"alphanum": {"{0} must contain only letters and numbers", false},
}

func (v *DefaultValidator) ValidateStruct(obj any) error {
	if kindOfData(obj) == reflect.Struct {
		v.lazyinit()
		if err := v.validate.Struct(obj); err != nil {
			return err
		}
	}
	return nil
}

func (v *DefaultValidator) Engine() any {
	v.lazyinit()
	return v.validate
}

func (v *DefaultValidator) Translator() ut.Translator {
	v.lazyinit()
	return v.translator
}

func (v *DefaultValidator) lazyinit() {
	v.once.Do(func() {
		v.validate = validator.New(validator.WithRequiredStructEnabled())
		v.validate.SetTagName("binding")

		locale := en.New()
		uni := ut.New(locale, locale)
		v.translator, _ = uni.GetTranslator("en")

		_ = en_translations.RegisterDefaultTranslations(v.validate, v.translator)

		for tag, msg := range messages {
			v.register(tag, msg.text, msg.withParam)
		}
	})
}

func (v *DefaultValidator) register(tag, text string, withParam bool) {
	_ = v.validate.RegisterTranslation(tag, v.translator, func(trans ut.Translator) error {
		return trans.Add(tag, text, true)
	}, func(trans ut.Translator, fe validator.FieldError) string {
		params := []string{fe.Field()}
		if withParam {
			params = append(params, fe.Param())
		}
		t, _ := trans.T(tag, params...)
		return t
	})
}

func kindOfData(data any) reflect.Kind {
	value := reflect.ValueOf(data)
	valueType := value.Kind()

	if valueType == reflect.Ptr {
		valueType = value.Elem().Kind()
	}
	return valueType
}

func TranslateValidationErrors(err error) []string {
	var out []string

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		if v, ok := binding.Validator.(*DefaultValidator); ok {
			trans := v.Translator()
			for _, e := range validationErrs {
				out = append(out, e.Translate(trans))
			}
		}
	}

	return out
}

// TranslateValidationError returns the first readable validation message,
// or the raw error for malformed bodies.
func TranslateValidationError(err error) string {
	if msgs := TranslateValidationErrors(err); len(msgs) > 0 {
		return msgs[0]
	}
	return err.Error()
}
