package groups

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/models"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxCommentLength     = 500
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// GroupInput is the editable part of a group.
type GroupInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Color       string  `json:"color" validate:"required,hexcolor"`
}

// normalized trims text fields, turns a blank description into nil and fills
// in the default color.
func (in GroupInput) normalized() GroupInput {
	out := GroupInput{
		Name:  strings.TrimSpace(in.Name),
		Color: strings.TrimSpace(in.Color),
	}
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			out.Description = &d
		}
	}
	if out.Color == "" {
		out.Color = models.DefaultGroupColor
	}
	return out
}

// Validated returns the normalized input, or a VALIDATION error when it breaks
// the length or color rules.
func (in GroupInput) Validated() (GroupInput, error) {
	out := in.normalized()
	if err := validateStruct(out); err != nil {
		return GroupInput{}, err
	}
	return out, nil
}

type commentInput struct {
	Comment string `json:"comment" validate:"required,max=500"`
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors collects per-field messages into the error details.
// The error message is the first field's message so it can be shown as is.
func formatValidationErrors(err error) *apperrors.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Wrap(apperrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	first := ""
	for _, fieldErr := range errs {
		msg := validationMessage(fieldErr)
		details[fieldErr.Field()] = msg
		if first == "" {
			first = msg
		}
	}
	return apperrors.New(apperrors.CodeValidation, first).WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Field() + "." + fe.Tag() {
	case "name.required":
		return "Group name is required"
	case "name.max":
		return fmt.Sprintf("Group name must be %d characters or less", MaxNameLength)
	case "description.max":
		return fmt.Sprintf("Description must be %d characters or less", MaxDescriptionLength)
	case "color.hexcolor", "color.required":
		return "Color must be a hex color such as #3B82F6"
	case "comment.required":
		return "Comment cannot be empty"
	case "comment.max":
		return fmt.Sprintf("Comment is too long (max %d characters)", MaxCommentLength)
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
