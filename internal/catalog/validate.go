// Package catalog loads and validates question catalogs.
package catalog

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"quiz-session-service/internal/domain"
)

// custom validation tags
const (
	choiceOptionsTag   = "choice_options"
	uniqueOptionsTag   = "unique_options"
	answerInOptionsTag = "answer_in_options"
	freeTextOptionsTag = "free_text_options"
	uniqueIDTag        = "unique_id"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterStructValidation(questionStructValidation, domain.Question{})
	validate.RegisterStructValidation(catalogStructValidation, domain.Catalog{})

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{choiceOptionsTag, uniqueOptionsTag, answerInOptionsTag, freeTextOptionsTag, uniqueIDTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case choiceOptionsTag:
		return "single choice questions need at least 2 options"
	case uniqueOptionsTag:
		return "options must be unique"
	case answerInOptionsTag:
		return "correctAnswer must be one of the options"
	case freeTextOptionsTag:
		return "free text questions take no options"
	case uniqueIDTag:
		return fmt.Sprintf("duplicate question id %q", fe.Param())
	default:
		return fe.Error()
	}
}

func questionStructValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(domain.Question)
	if !ok {
		return
	}
	switch q.Kind {
	case domain.KindSingleChoice:
		if len(q.Options) < 2 {
			sl.ReportError(q.Options, "options", "Options", choiceOptionsTag, "")
			return
		}
		seen := make(map[string]struct{}, len(q.Options))
		for _, opt := range q.Options {
			if _, dup := seen[opt]; dup {
				sl.ReportError(q.Options, "options", "Options", uniqueOptionsTag, "")
				return
			}
			seen[opt] = struct{}{}
		}
		if !q.HasOption(q.CorrectAnswer) {
			sl.ReportError(q.CorrectAnswer, "correctAnswer", "CorrectAnswer", answerInOptionsTag, "")
		}
	case domain.KindFreeText:
		if len(q.Options) > 0 {
			sl.ReportError(q.Options, "options", "Options", freeTextOptionsTag, "")
		}
		if q.CorrectAnswer == "" {
			sl.ReportError(q.CorrectAnswer, "correctAnswer", "CorrectAnswer", "required", "")
		}
	}
}

func catalogStructValidation(sl validator.StructLevel) {
	c, ok := sl.Current().Interface().(domain.Catalog)
	if !ok {
		return
	}
	seen := make(map[string]struct{}, len(c.Questions))
	for _, q := range c.Questions {
		if q.ID == "" {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			sl.ReportError(c.Questions, "questions", "Questions", uniqueIDTag, q.ID)
			continue
		}
		seen[q.ID] = struct{}{}
	}
}

// FieldError is one failed rule, keyed by the JSON path of the field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rule a catalog breaks.
type ValidationError struct {
	CatalogID string
	Fields    []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("invalid catalog %q: %s", e.CatalogID, strings.Join(parts, "; "))
}

// Validate checks a catalog's structure: ids present and unique, kinds known,
// single-choice answers drawn from their options, free-text answers present.
func Validate(c domain.Catalog) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{CatalogID: c.ID}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fe.Translate(translator),
		})
	}
	return out
}

// fieldPath strips the root type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
