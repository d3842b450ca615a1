package models

import "encoding/json"

// EncodeTags serializes tags for the images.tags column. nil encodes as "[]".
func EncodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeTags parses the images.tags column. Missing or malformed values yield an empty list.
func DecodeTags(raw *string) []string {
	if raw == nil || *raw == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(*raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}
