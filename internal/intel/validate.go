package intel

import (
	"fmt"
	"slices"
	"strings"
)

func oneOf(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be one of %q", allowed)}
	}
	return nil
}

func maxLen(field, value string, limit int) error {
	if len(value) > limit {
		return &ValidationError{Field: field, Message: fmt.Sprintf("exceeds max length of %d bytes", limit)}
	}
	return nil
}

func validateBroadcast(req *BroadcastRequest) error {
	if err := oneOf("category", req.Category, BroadcastCategories); err != nil {
		return err
	}
	return maxLen("message", req.Message, MaxMessageLen)
}

func validateFileActivity(req *FileActivityRequest) error {
	if err := oneOf("action", req.Action, FileActions); err != nil {
		return err
	}
	if err := maxLen("file_path", req.FilePath, MaxFilePathLen); err != nil {
		return err
	}
	if hasParentSegment(req.FilePath) {
		return &ValidationError{Field: "file_path", Message: "path traversal not allowed"}
	}
	return nil
}

func validateScratchpad(req *ScratchpadWriteRequest) error {
	if err := oneOf("category", req.Category, ScratchpadCategories); err != nil {
		return err
	}
	if err := maxLen("title", req.Title, MaxTitleLen); err != nil {
		return err
	}
	return maxLen("content", req.Content, MaxContentLen)
}

// hasParentSegment reports whether any path segment is "..", with either
// separator style since sessions may run on Windows.
func hasParentSegment(p string) bool {
	segs := strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
	return slices.Contains(segs, "..")
}
