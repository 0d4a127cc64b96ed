package resume

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"cvix/internal/generr"
)

var datePattern = regexp.MustCompile(`^\d{4}(-(0[1-9]|1[0-2])(-(0[1-9]|[12]\d|3[01]))?)?$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("resumedate", func(fl validator.FieldLevel) bool {
			return datePattern.MatchString(fl.Field().String())
		})
		v.RegisterStructValidation(validatePeriod, Work{}, Education{}, Project{})
		validate = v
	})
	return validate
}

// validatePeriod rejects entries whose end date precedes their start date.
func validatePeriod(sl validator.StructLevel) {
	p, ok := sl.Current().Interface().(period)
	if !ok {
		return
	}
	start, end := p.dates()
	if start == "" || end == "" {
		return
	}
	if !datePattern.MatchString(start) || !datePattern.MatchString(end) {
		return
	}
	n := min(len(start), len(end))
	if end[:n] < start[:n] {
		sl.ReportError(end, "endDate", "EndDate", "after_start", start)
	}
}

// Validate checks every business rule of r and returns a validation
// *generr.Error listing all offending fields.
func Validate(r *Resume) error {
	if r == nil {
		return generr.Validation("resume is required", generr.FieldError{Field: "resume", Rule: "required"})
	}

	err := validatorInstance().Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return generr.Validation("resume could not be validated")
	}

	fields := make([]generr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, generr.FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return generr.Validation("resume failed validation", fields...)
}

// fieldPath drops the root type name: "Resume.work[0].company" -> "work[0].company".
func fieldPath(namespace string) string {
	if idx := strings.IndexByte(namespace, '.'); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

// CheckPayloadSize rejects raw payloads above MaxPayloadBytes before any parsing.
func CheckPayloadSize(n int) error {
	return CheckPayloadSizeLimit(n, MaxPayloadBytes)
}

// CheckPayloadSizeLimit is CheckPayloadSize with a tighter limit. Limits
// above MaxPayloadBytes are lowered to it.
func CheckPayloadSizeLimit(n, limit int) error {
	if limit <= 0 || limit > MaxPayloadBytes {
		limit = MaxPayloadBytes
	}
	if n > limit {
		return generr.Validation("payload too large", generr.FieldError{
			Field: "body",
			Rule:  "max_bytes",
			Param: strconv.Itoa(limit),
		})
	}
	return nil
}
