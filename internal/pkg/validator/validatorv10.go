package validator

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shandysiswandi/smsotp/internal/pkg/strcase"
)

var ErrTranslatorNotFound = errors.New("validator: english translator not found")

// rule is a custom tag with its English message. {0} is the field name.
type rule struct {
	tag     string
	message string
	fn      validator.Func
}

var rules = []rule{
	{
		tag:     "otpcode",
		message: "{0} must be a 6-digit code",
		fn:      matchString(regexp.MustCompile(`^\d{6}$`)),
	},
}

func matchString(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && re.MatchString(s)
	}
}

// V10ValidationError maps snake_case field names to English messages.
type V10ValidationError map[string]string

func (e V10ValidationError) Error() string {
	b, err := json.Marshal(map[string]string(e))
	if err != nil || len(e) == 0 {
		return "validation error"
	}
	return string(b)
}

func (e V10ValidationError) Values() map[string]string {
	return e
}

// V10Validator is a Validator on go-playground/validator with English messages.
type V10Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewV10Validator() (*V10Validator, error) {
	locale := en.New()
	trans, ok := ut.New(locale, locale).GetTranslator(locale.Locale())
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	for _, r := range rules {
		if err := validate.RegisterValidation(r.tag, r.fn); err != nil {
			return nil, err
		}
		if err := validate.RegisterTranslation(r.tag, trans, addMessage(r), translate); err != nil {
			return nil, err
		}
	}

	return &V10Validator{validate: validate, trans: trans}, nil
}

func addMessage(r rule) validator.RegisterTranslationsFunc {
	return func(t ut.Translator) error {
		return t.Add(r.tag, r.message, false)
	}
}

func translate(t ut.Translator, fe validator.FieldError) string {
	msg, err := t.T(fe.Tag(), fe.Field())
	if err != nil {
		return fe.Error()
	}
	return msg
}

// Validate returns V10ValidationError when a field rule fails and the raw
// error for anything else, such as a non-struct argument.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.trans)
	}
	return out
}
