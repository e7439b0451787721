package service

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer strips markup from free text supplied with approvals and scores.
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer builds a sanitizer on bluemonday's strict policy.
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean returns nil for nil input and for text that is empty once markup is removed.
func (s *TextSanitizer) Clean(value *string) *string {
	if value == nil {
		return nil
	}

	cleaned := strings.TrimSpace(s.policy.Sanitize(*value))
	if cleaned == "" {
		return nil
	}

	return &cleaned
}
