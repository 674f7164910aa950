// Package event defines the Drive sharing event received from the webhook.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Known event types. Any other value is accepted and rendered generically.
const (
	TypeFileShared        = "file_shared"
	TypeFolderShared      = "folder_shared"
	TypePermissionChanged = "permission_changed"
)

// DriveEvent describes one file-sharing action. EventType, FileID, FileName
// and Timestamp are required; everything else is optional.
type DriveEvent struct {
	EventType    string   `json:"eventType"`
	FileID       string   `json:"fileId"`
	FileName     string   `json:"fileName"`
	FileType     string   `json:"fileType,omitempty"`
	FileURL      string   `json:"fileUrl,omitempty"`
	FileSize     *ByteSize `json:"fileSize,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	Owner        string   `json:"owner,omitempty"`
	SharedBy     string   `json:"sharedBy,omitempty"`
	Permission   string   `json:"permission,omitempty"`
	Editors      []string `json:"editors,omitempty"`
	Viewers      []string `json:"viewers,omitempty"`
	Timestamp    string   `json:"timestamp"`
	APIKey       string   `json:"apiKey,omitempty"`
}

// ByteSize is a file size in bytes. Drive metadata carries sizes as numeric
// strings, so both JSON numbers and strings are accepted. A value that is
// not a whole number decodes as -1, which is rendered as unknown.
type ByteSize int64

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		*b = -1
		return nil
	}
	*b = ByteSize(n)
	return nil
}

// ValidationError reports an incomplete or malformed event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// Validate checks that the required fields are present. The timestamp is
// not parsed here: an unrecognized form is rendered as received.
func Validate(ev DriveEvent) error {
	required := []struct {
		field string
		value string
	}{
		{"eventType", ev.EventType},
		{"fileId", ev.FileID},
		{"fileName", ev.FileName},
		{"timestamp", ev.Timestamp},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "is required"}
		}
	}
	return nil
}

// timeLayouts are the ISO-8601 forms ParseTime understands. Layouts without
// a zone are taken as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04",
	"20060102T150405Z0700",
	"20060102T150405",
	"2006-01-02",
	"20060102",
}

// ParseTime parses an ISO-8601 timestamp in extended or basic form, with or
// without seconds, fractional seconds or zone offset, or a bare date.
// Callers that cannot parse a timestamp keep the raw string.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
