package history

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/models"
	"github.com/camden-git/mediacatalog/repository"
)

// Field is an undoable image field.
type Field string

const (
	FieldRating     Field = "rating"
	FieldComment    Field = "comment"
	FieldTags       Field = "tags"
	FieldIsFavorite Field = "is_favorite"
)

const actionPrefix = "update_"

func (f Field) ActionType() string {
	return actionPrefix + string(f)
}

func (f Field) valid() bool {
	switch f {
	case FieldRating, FieldComment, FieldTags, FieldIsFavorite:
		return true
	}
	return false
}

// FieldFromActionType parses "update_<field>".
func FieldFromActionType(actionType string) (Field, error) {
	f := Field(strings.TrimPrefix(actionType, actionPrefix))
	if !strings.HasPrefix(actionType, actionPrefix) || !f.valid() {
		return "", apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported action type %q", actionType))
	}
	return f, nil
}

// EncodeValue serializes a field value for the action log: numbers as decimal
// strings, booleans as "1"/"0", tag lists as JSON, nil as nil.
func EncodeValue(v any) (*string, error) {
	var s string
	switch val := v.(type) {
	case nil:
		return nil, nil
	case *string:
		if val == nil {
			return nil, nil
		}
		s = *val
	case string:
		s = val
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = "0"
		if val {
			s = "1"
		}
	case []string:
		if val == nil {
			val = []string{}
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags: %w", err)
		}
		s = string(b)
	default:
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported value type %T", v))
	}
	return &s, nil
}

// DecodeValue turns a logged value back into a store update and a matching
// catalog patch. Missing values decode to the field's zero value: rating 0,
// empty comment, no tags, not favorite. Unparseable values decode the same way.
func DecodeValue(field Field, raw *string) (repository.MetadataUpdate, catalog.Patch, error) {
	var upd repository.MetadataUpdate
	var patch catalog.Patch

	switch field {
	case FieldRating:
		n := parseIntOrZero(raw)
		upd.Rating = &n
		patch.Rating = &n
	case FieldComment:
		c := ""
		if raw != nil {
			c = *raw
		}
		upd.Comment = &c
		patch.Comment = &c
	case FieldTags:
		tags := models.DecodeTags(raw)
		upd.Tags = tags
		patch.Tags = tags
	case FieldIsFavorite:
		fav := parseIntOrZero(raw) != 0
		upd.IsFavorite = &fav
		patch.IsFavorite = &fav
	default:
		return upd, patch, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported field %q", field))
	}
	return upd, patch, nil
}

func parseIntOrZero(raw *string) int {
	if raw == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		return 0
	}
	return n
}
