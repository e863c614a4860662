package client

import (
	"errors"
	"reflect"
	"strings"

	"github.com/adamwoolhether/simplesdk/client/throttle"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// settings is the validated part of a Client's configuration.
type settings struct {
	BasePath        string            `json:"base_path" validate:"required,url"`
	Token           string            `json:"token"`
	Headers         map[string]string `json:"headers" validate:"omitempty,dive,keys,required,printascii,excludes=:,endkeys"`
	UserAgent       string            `json:"user_agent" validate:"omitempty,printascii"`
	RequestIDHeader string            `json:"request_id_header" validate:"omitempty,printascii,excludes=:"`
	Throttle        *throttle.Config  `json:"throttle" validate:"omitempty"`
}

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("client: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// FieldError describes one invalid configuration value.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors is returned by [Build] when options fail validation.
type FieldErrors []FieldError

// Error implements the error interface, returning a human-readable
// summary of all field errors.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

// Fields returns the failing fields keyed by their namespace.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, f := range fe {
		m[f.Field] = f.Err
	}
	return m
}

func (s settings) validate() error {
	if err := validate.Struct(s); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		fields := make(FieldErrors, 0, len(verrors))
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: fieldName(verror.Namespace()),
				Err:   verror.Translate(translator),
			})
		}
		return fields
	}

	return nil
}

// fieldName strips the struct name from a validator namespace.
func fieldName(ns string) string {
	if _, after, ok := strings.Cut(ns, "."); ok {
		return after
	}
	return ns
}
