package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts validator errors into the domain taxonomy,
// keeping the offending value in the message.
func validationError(prefix string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ErrValidation{Field: prefix, Message: err.Error()}
	}
	fe := fieldErrs[0]
	msg := fmt.Sprintf("failed '%s' (%s), got %v", fe.Tag(), fe.Param(), fe.Value())
	if fe.Tag() == "min" || fe.Tag() == "max" {
		msg = fmt.Sprintf("must be between 1 and 5, got %v", fe.Value())
	}
	return &domain.ErrValidation{Field: prefix + "." + fe.Field(), Message: msg}
}

// normalizeSelfReport validates the three ordinals, checks trigger codes
// against the enumeration and de-duplicates them in first-seen order.
func normalizeSelfReport(in domain.StressSelfReport) (domain.StressSelfReport, error) {
	if err := validate.Struct(in); err != nil {
		return domain.StressSelfReport{}, validationError("stressSelfReport", err)
	}

	seen := make(map[domain.StressTrigger]bool, len(in.Triggers))
	triggers := make([]domain.StressTrigger, 0, len(in.Triggers))
	for _, t := range in.Triggers {
		t = domain.StressTrigger(strings.ToUpper(strings.TrimSpace(string(t))))
		if _, known := domain.TriggerWeights[t]; !known {
			return domain.StressSelfReport{}, &domain.ErrValidation{
				Field:   "stressSelfReport.triggers",
				Message: fmt.Sprintf("unknown trigger %q", t),
			}
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		triggers = append(triggers, t)
	}
	if len(triggers) > domain.MaxStressTriggers {
		return domain.StressSelfReport{}, &domain.ErrValidation{
			Field:   "stressSelfReport.triggers",
			Message: fmt.Sprintf("at most %d distinct triggers, got %d", domain.MaxStressTriggers, len(triggers)),
		}
	}

	out := in
	out.Triggers = triggers
	out.Note = truncateRunes(strings.TrimSpace(in.Note), domain.MaxFreeTextNoteLength)
	return out, nil
}

// normalizeEvaluation validates the six dimensions; nil stays nil.
func normalizeEvaluation(in *domain.InstitutionShiftEvaluation) (*domain.InstitutionShiftEvaluation, error) {
	if in == nil {
		return nil, nil
	}
	if err := validate.Struct(in); err != nil {
		return nil, validationError("institutionEvaluation", err)
	}
	out := *in
	out.Note = truncateRunes(strings.TrimSpace(in.Note), domain.MaxFreeTextNoteLength)
	return &out, nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &domain.ErrValidation{Field: field, Message: "required"}
	}
	return nil
}
