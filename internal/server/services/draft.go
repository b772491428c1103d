package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/go-playground/validator/v10"
)

// FieldError is a validation failure of one request field. It matches
// common.ErrValidation with errors.Is.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return common.ErrValidation
}

func fieldError(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Form is the raw multipart submission. List fields carry JSON arrays.
type Form struct {
	Title      string `form:"title"`
	About      string `form:"about"`
	Tags       string `form:"tags"`
	Authors    string `form:"authors"`
	Citations  string `form:"citations"`
	Price      string `form:"price"`
	RoyaltyBps string `form:"royalty_bps"`
}

// Draft is a parsed and validated Form.
type Draft struct {
	Title       string   `json:"title" validate:"required,max=300"`
	About       string   `json:"about" validate:"max=5000"`
	Tags        []string `json:"tags" validate:"max=32,dive,required,max=64"`
	AuthorIDs   []string `json:"authors" validate:"max=32,unique,dive,required,max=256"`
	CitationIDs []string `json:"citations" validate:"max=256,unique,dive,uuid"`
	Price       uint64   `json:"price" validate:"lte=9223372036854775807"`
	RoyaltyBps  uint16   `json:"royalty_bps" validate:"lte=10000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseDraft decodes and validates f. Every failure is a *FieldError.
func ParseDraft(f Form) (*Draft, error) {
	d := &Draft{
		Title: strings.TrimSpace(f.Title),
		About: strings.TrimSpace(f.About),
	}

	if err := decodeList("tags", f.Tags, &d.Tags); err != nil {
		return nil, err
	}
	if err := decodeList("authors", f.Authors, &d.AuthorIDs); err != nil {
		return nil, err
	}
	if err := decodeList("citations", f.Citations, &d.CitationIDs); err != nil {
		return nil, err
	}

	if s := strings.TrimSpace(f.Price); s != "" {
		price, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fieldError("price", "must be a non-negative integer")
		}
		d.Price = price
	}
	if s := strings.TrimSpace(f.RoyaltyBps); s != "" {
		bps, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, fieldError("royalty_bps", "must be an integer between 0 and 10000")
		}
		d.RoyaltyBps = uint16(bps)
	}

	if err := validate.Struct(d); err != nil {
		return nil, translate(err)
	}
	return d, nil
}

// decodeList accepts an empty value as an empty list.
func decodeList(field, raw string, dst *[]string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*dst = []string{}
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return fieldError(field, "expected a JSON array of strings")
	}
	if items == nil {
		items = []string{}
	}
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	*dst = items
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fieldError(field, "is required")
	case "max":
		if fe.Kind() == reflect.Slice {
			return fieldError(field, "at most %s items allowed", fe.Param())
		}
		return fieldError(field, "at most %s characters allowed", fe.Param())
	case "unique":
		return fieldError(field, "contains duplicates")
	case "uuid":
		return fieldError(field, "must be a publication id")
	case "lte":
		return fieldError(field, "must be at most %s", fe.Param())
	default:
		return fieldError(field, "is invalid")
	}
}

// storageName reduces a client supplied filename to a safe object key
// segment.
func storageName(filename string) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" || name == ".." {
		return "", fieldError("file", "filename is required")
	}
	return name, nil
}
