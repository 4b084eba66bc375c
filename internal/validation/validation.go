// Package validation checks inbound API requests before any handler runs.
//
// Schemas are plain structs tagged for go-playground/validator. A failed
// check becomes a VALIDATION AppError naming the field and the constraint;
// a broken schema becomes INTERNAL. Nothing here has side effects.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/pipeline"
	"atlas-advisor-backend/internal/types"
)

const (
	MessageMinLength = 1
	MessageMaxLength = 500
	QueryMinLength   = 3
	QueryMaxLength   = 200
	DefaultLimit     = 20
	MaxLimit         = 100
	MaxSelected      = 50
)

// Sort orders accepted by the search endpoint.
const (
	SortRelevance  = "relevance"
	SortTitle      = "title"
	SortModified   = "modified"
	SortPopularity = "popularity"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

type chatSchema struct {
	Message          string   `json:"message" validate:"min=1,max=500"`
	SessionID        string   `json:"sessionId" validate:"omitempty,uuid"`
	SelectedDatasets []string `json:"selectedDatasets" validate:"max=50,dive,min=1,max=128"`
}

type searchSchema struct {
	Q        string `json:"q" validate:"min=3,max=200"`
	Category string `json:"category" validate:"max=100"`
	Limit    int    `json:"limit" validate:"min=1,max=100"`
	Offset   int    `json:"offset" validate:"min=0"`
	SortBy   string `json:"sortBy" validate:"oneof=relevance title modified popularity"`
}

// ValidateChat checks a chat request and trims its text fields.
func ValidateChat(req types.ChatRequest) pipeline.Result[types.ChatInput] {
	s := chatSchema{
		Message:   strings.TrimSpace(req.Message),
		SessionID: strings.TrimSpace(req.SessionID),
	}
	if req.Context != nil {
		for _, id := range req.Context.SelectedDatasets {
			s.SelectedDatasets = append(s.SelectedDatasets, strings.TrimSpace(id))
		}
	}
	if err := Struct(&s); err != nil {
		return pipeline.Fail[types.ChatInput](err)
	}
	return pipeline.Ok(types.ChatInput{
		Message:          s.Message,
		SessionID:        s.SessionID,
		SelectedDatasets: s.SelectedDatasets,
	})
}

// ValidateSearch parses and checks the search query, applying defaults.
func ValidateSearch(req types.SearchRequest) pipeline.Result[types.SearchInput] {
	limit, aerr := intParam("limit", req.Limit, DefaultLimit)
	if aerr != nil {
		return pipeline.Fail[types.SearchInput](aerr)
	}
	offset, aerr := intParam("offset", req.Offset, 0)
	if aerr != nil {
		return pipeline.Fail[types.SearchInput](aerr)
	}
	sortBy := strings.ToLower(strings.TrimSpace(req.SortBy))
	if sortBy == "" {
		sortBy = SortRelevance
	}
	s := searchSchema{
		Q:        strings.TrimSpace(req.Q),
		Category: strings.TrimSpace(req.Category),
		Limit:    limit,
		Offset:   offset,
		SortBy:   sortBy,
	}
	if err := Struct(&s); err != nil {
		return pipeline.Fail[types.SearchInput](err)
	}
	return pipeline.Ok(types.SearchInput{
		Query:    s.Q,
		Category: s.Category,
		Limit:    s.Limit,
		Offset:   s.Offset,
		SortBy:   s.SortBy,
	})
}

func intParam(field, raw string, def int) (int, *apperr.AppError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(field,
			fmt.Sprintf("%s must be a whole number, got %q", field, raw),
			map[string]any{"value": raw})
	}
	return n, nil
}

// Struct validates schema, which must be a pointer to a tagged struct.
func Struct(schema any) (aerr *apperr.AppError) {
	defer func() {
		// validator panics on unknown tags
		if r := recover(); r != nil {
			aerr = apperr.New(apperr.CategoryInternal, apperr.WithCause(fmt.Errorf("validation schema: %v", r)))
		}
	}()
	err := validate.Struct(schema)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return apperr.New(apperr.CategoryInternal, apperr.WithCause(err))
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return describe(reflect.TypeOf(schema), verrs[0])
	}
	return apperr.New(apperr.CategoryInternal, apperr.WithCause(err))
}

// describe turns the first failed check into a user-facing message.
func describe(schema reflect.Type, fe validator.FieldError) *apperr.AppError {
	field := fe.Field()
	b := boundsOf(schema, fe.StructField())

	switch fe.Tag() {
	case "min", "max", "len":
		switch fe.Kind() {
		case reflect.String:
			n := utf8.RuneCountInString(fmt.Sprint(fe.Value()))
			d := map[string]any{"length": n}
			var msg string
			switch {
			case b.hasMin && b.hasMax:
				d["minLength"], d["maxLength"] = b.min, b.max
				msg = fmt.Sprintf("%s must be %d–%d characters, got %d", field, b.min, b.max, n)
			case b.hasMin:
				d["minLength"] = b.min
				msg = fmt.Sprintf("%s must be at least %d characters, got %d", field, b.min, n)
			default:
				d["maxLength"] = b.max
				msg = fmt.Sprintf("%s must be at most %d characters, got %d", field, b.max, n)
			}
			return apperr.Validation(field, msg, d)
		case reflect.Slice:
			n := reflect.ValueOf(fe.Value()).Len()
			return apperr.Validation(field,
				fmt.Sprintf("%s may contain at most %s items, got %d", field, fe.Param(), n),
				map[string]any{"maxItems": atoi(fe.Param()), "count": n})
		default:
			d := map[string]any{"value": fe.Value()}
			var msg string
			if b.hasMin && b.hasMax {
				d["min"], d["max"] = b.min, b.max
				msg = fmt.Sprintf("%s must be between %d and %d, got %v", field, b.min, b.max, fe.Value())
			} else if fe.Tag() == "min" {
				d["min"] = atoi(fe.Param())
				msg = fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
			} else {
				d["max"] = atoi(fe.Param())
				msg = fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
			}
			return apperr.Validation(field, msg, d)
		}
	case "uuid":
		return apperr.Validation(field,
			fmt.Sprintf("%s must be a valid UUID", field),
			map[string]any{"format": "uuid"})
	case "oneof":
		allowed := strings.Fields(fe.Param())
		return apperr.Validation(field,
			fmt.Sprintf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), fe.Value()),
			map[string]any{"allowed": allowed})
	case "required":
		return apperr.Validation(field, fmt.Sprintf("%s is required", field), nil)
	}
	return apperr.Validation(field,
		fmt.Sprintf("%s failed the %s check", field, fe.Tag()),
		map[string]any{"constraint": fe.Tag()})
}

type bounds struct {
	min, max       int
	hasMin, hasMax bool
}

// boundsOf reads the min and max of a field from its validate tag. For
// dive elements the rules after "dive" apply.
func boundsOf(schema reflect.Type, structField string) bounds {
	for schema.Kind() == reflect.Pointer {
		schema = schema.Elem()
	}
	name, elem := structField, false
	if i := strings.IndexByte(structField, '['); i >= 0 {
		name, elem = structField[:i], true
	}
	f, ok := schema.FieldByName(name)
	if !ok {
		return bounds{}
	}
	rules := f.Tag.Get("validate")
	if head, tail, found := strings.Cut(rules, "dive"); found {
		if elem {
			rules = tail
		} else {
			rules = head
		}
	}
	var b bounds
	for _, r := range strings.Split(rules, ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(r), "=")
		switch k {
		case "min":
			b.min, b.hasMin = atoi(v), true
		case "max":
			b.max, b.hasMax = atoi(v), true
		}
	}
	return b
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
