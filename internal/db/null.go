package db

import "time"

// Text dereferences a nullable text column.
func Text(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// NullText maps the empty string to SQL NULL.
func NullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NullTime maps the zero time to SQL NULL.
func NullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
