// Package utils provides utility functions for the application.
package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

// StringPtrValue returns the pointed string or "" for nil
func StringPtrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// IsBlank reports whether s is empty after trimming whitespace
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// NormalizeCountry returns the trimmed, upper-cased ISO country code
func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
