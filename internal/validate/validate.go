package validate

import (
	"fmt"
	"unicode/utf8"
)

// Text field length limits shared with the frontend.
const (
	MaxTitleLength           = 500
	MaxDescriptionLength     = 5000
	MaxFeedbackContentLength = 20000
	MaxCommentContentLength  = 5000
	MaxStorageKeyLength      = 1024
)

func checkLen(value string, max int, field string) string {
	if utf8.RuneCountInString(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string       { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string { return checkLen(s, MaxDescriptionLength, "description") }
func FeedbackContent(s string) string {
	return checkLen(s, MaxFeedbackContentLength, "feedback")
}
func CommentContent(s string) string { return checkLen(s, MaxCommentContentLength, "comment") }
func StorageKey(s string) string     { return checkLen(s, MaxStorageKeyLength, "storage key") }

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":           MaxTitleLength,
		"description":     MaxDescriptionLength,
		"feedbackContent": MaxFeedbackContentLength,
		"commentContent":  MaxCommentContentLength,
	}
}
