package blog

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// PostInput carries the writable post fields. Nil fields are left untouched
// on update; empty optional strings are stored as NULL.
type PostInput struct {
	Title            *string    `json:"title,omitempty"`
	Slug             *string    `json:"slug,omitempty"`
	Description      *string    `json:"description,omitempty"`
	Content          *string    `json:"content,omitempty"`
	FeaturedImage    *string    `json:"featured_image,omitempty"`
	CoupangURL       *string    `json:"coupang_url,omitempty"`
	CoupangProductID *string    `json:"coupang_product_id,omitempty"`
	ProductName      *string    `json:"product_name,omitempty"`
	ProductPrice     *float64   `json:"product_price,omitempty"`
	Category         *string    `json:"category,omitempty"`
	Tags             *[]string  `json:"tags,omitempty"`
	SEOKeywords      *[]string  `json:"seo_keywords,omitempty"`
	FAQ              *[]FAQItem `json:"faq,omitempty"`
	IsPublished      *bool      `json:"is_published,omitempty"`

	// Null lists nullable columns the caller explicitly set to null.
	Null []Field `json:"-"`
}

// Field names a nullable post column by its JSON key.
type Field string

const (
	FieldDescription      Field = "description"
	FieldFeaturedImage    Field = "featured_image"
	FieldCoupangURL       Field = "coupang_url"
	FieldCoupangProductID Field = "coupang_product_id"
	FieldProductName      Field = "product_name"
	FieldProductPrice     Field = "product_price"
)

var nullableFields = []Field{
	FieldDescription,
	FieldFeaturedImage,
	FieldCoupangURL,
	FieldCoupangProductID,
	FieldProductName,
	FieldProductPrice,
}

var patchableNullFields = map[Field]bool{
	FieldDescription:   true,
	FieldFeaturedImage: true,
}

// NullFields reports which nullable columns a JSON object body sets to null.
// A missing key and a null value decode to the same nil pointer, so the raw
// body is the only place the difference survives.
func NullFields(body []byte) ([]Field, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(ErrInvalidInput, "request body must be a JSON object")
	}

	var fields []Field
	for _, field := range nullableFields {
		if value, ok := raw[string(field)]; ok && bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			fields = append(fields, field)
		}
	}
	return fields, nil
}

// PatchInput is the restricted field set accepted by partial updates.
type PatchInput struct {
	Title         *string   `json:"title,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Content       *string   `json:"content,omitempty"`
	FeaturedImage *string   `json:"featured_image,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	SEOKeywords   *[]string `json:"seo_keywords,omitempty"`
	IsPublished   *bool     `json:"is_published,omitempty"`

	// Null may only name description and featured_image.
	Null []Field `json:"-"`
}

func (p PatchInput) nullFields() []Field {
	var fields []Field
	for _, field := range p.Null {
		if patchableNullFields[field] {
			fields = append(fields, field)
		}
	}
	return fields
}

func (p PatchInput) asPostInput() PostInput {
	return PostInput{
		Null:          p.nullFields(),
		Title:         p.Title,
		Description:   p.Description,
		Content:       p.Content,
		FeaturedImage: p.FeaturedImage,
		Category:      p.Category,
		Tags:          p.Tags,
		SEOKeywords:   p.SEOKeywords,
		IsPublished:   p.IsPublished,
	}
}

func (p PatchInput) empty() bool {
	return p.Title == nil && p.Description == nil && p.Content == nil && p.FeaturedImage == nil &&
		p.Category == nil && p.Tags == nil && p.SEOKeywords == nil && p.IsPublished == nil &&
		len(p.nullFields()) == 0
}

// SettingsInput carries a partial settings update.
type SettingsInput struct {
	Categories      *[]string `json:"categories,omitempty"`
	SiteName        *string   `json:"site_name,omitempty"`
	SiteDescription *string   `json:"site_description,omitempty"`
}

type requiredPostFields struct {
	Title    string `validate:"required"`
	Slug     string `validate:"required"`
	Content  string `validate:"required"`
	Category string `validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (in PostInput) validateCreate() error {
	required := requiredPostFields{
		Title:    strings.TrimSpace(deref(in.Title)),
		Slug:     strings.TrimSpace(deref(in.Slug)),
		Content:  strings.TrimSpace(deref(in.Content)),
		Category: strings.TrimSpace(deref(in.Category)),
	}
	if err := validate.Struct(required); err != nil {
		return eris.Wrap(ErrInvalidInput, "missing required fields: title, slug, content, category")
	}

	return in.validateOptional()
}

type optionalPostFields struct {
	CoupangURL   string  `json:"coupang_url" validate:"omitempty,url"`
	ProductPrice float64 `json:"product_price" validate:"gte=0"`
}

func (in PostInput) validateOptional() error {
	optional := optionalPostFields{CoupangURL: strings.TrimSpace(deref(in.CoupangURL))}
	if in.ProductPrice != nil {
		optional.ProductPrice = *in.ProductPrice
	}

	if err := validate.Struct(optional); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return eris.Wrapf(ErrInvalidInput, "invalid %s", fieldErrs[0].Field())
		}
		return eris.Wrap(ErrInvalidInput, err.Error())
	}
	return nil
}

// normalize trims every provided string field.
func (in PostInput) normalize() PostInput {
	out := in
	out.Title = trimmedPtr(in.Title)
	out.Slug = trimmedPtr(in.Slug)
	out.Description = trimmedPtr(in.Description)
	out.FeaturedImage = trimmedPtr(in.FeaturedImage)
	out.CoupangURL = trimmedPtr(in.CoupangURL)
	out.CoupangProductID = trimmedPtr(in.CoupangProductID)
	out.ProductName = trimmedPtr(in.ProductName)
	out.Category = trimmedPtr(in.Category)
	return out
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// nullable maps an empty string to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cleanList(values []string) StringList {
	out := make(StringList, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
