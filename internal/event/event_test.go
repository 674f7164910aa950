package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func validEvent() DriveEvent {
	return DriveEvent{
		EventType: TypeFileShared,
		FileID:    "f1",
		FileName:  "report.pdf",
		SharedBy:  "alice",
		FileURL:   "https://x/f1",
		Timestamp: "2024-01-01T00:00:00Z",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*DriveEvent)
		wantField string
	}{
		{"valid", func(*DriveEvent) {}, ""},
		{"unknown type is valid", func(e *DriveEvent) { e.EventType = "unknown_type" }, ""},
		{"naive timestamp", func(e *DriveEvent) { e.Timestamp = "2024-01-01T09:30:00" }, ""},
		{"offset timestamp", func(e *DriveEvent) { e.Timestamp = "2024-01-01T09:30:00.123+09:00" }, ""},
		{"missing event type", func(e *DriveEvent) { e.EventType = "" }, "eventType"},
		{"missing file id", func(e *DriveEvent) { e.FileID = "" }, "fileId"},
		{"missing file name", func(e *DriveEvent) { e.FileName = "" }, "fileName"},
		{"blank file name", func(e *DriveEvent) { e.FileName = "   " }, "fileName"},
		{"missing timestamp", func(e *DriveEvent) { e.Timestamp = "" }, "timestamp"},
		{"basic offset timestamp", func(e *DriveEvent) { e.Timestamp = "2024-01-01T09:00:00+0900" }, ""},
		{"minute precision timestamp", func(e *DriveEvent) { e.Timestamp = "2024-01-01T09:00Z" }, ""},
		{"date only timestamp", func(e *DriveEvent) { e.Timestamp = "2024-01-01" }, ""},
		{"basic format timestamp", func(e *DriveEvent) { e.Timestamp = "20240101T000000Z" }, ""},
		{"free-form timestamp is kept", func(e *DriveEvent) { e.Timestamp = "yesterday" }, ""},
		{"blank timestamp", func(e *DriveEvent) { e.Timestamp = "  " }, "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)
			err := Validate(ev)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	payload := `{
		"eventType": "file_shared",
		"fileId": "f1",
		"fileName": "report.pdf",
		"fileSize": "2048",
		"editors": ["bob@example.com", "carol@example.com"],
		"viewers": ["dave@example.com"],
		"timestamp": "2024-01-01T00:00:00Z"
	}`
	var ev DriveEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	// Drive sends sizes as strings.
	if ev.FileSize == nil || *ev.FileSize != 2048 {
		t.Errorf("FileSize = %v, want 2048", ev.FileSize)
	}
	if len(ev.Editors) != 2 || ev.Editors[1] != "carol@example.com" {
		t.Errorf("Editors = %v", ev.Editors)
	}
	if err := Validate(ev); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDecodeFileSize(t *testing.T) {
	tests := []struct {
		name string
		json string
		want *int64
	}{
		{"number", `2048`, ptr(2048)},
		{"numeric string", `"1234"`, ptr(1234)},
		{"padded string", `" 77 "`, ptr(77)},
		{"null", `null`, nil},
		{"unparsable string", `"big"`, ptr(-1)},
		{"fraction", `12.5`, ptr(-1)},
		{"negative", `-5`, ptr(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"eventType":"file_shared","fileId":"f1","fileName":"a.pdf",` +
				`"timestamp":"2024-01-01T00:00:00Z","fileSize":` + tt.json + `}`
			var ev DriveEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if tt.want == nil {
				if ev.FileSize != nil {
					t.Errorf("FileSize = %d, want nil", *ev.FileSize)
				}
				return
			}
			if ev.FileSize == nil || int64(*ev.FileSize) != *tt.want {
				t.Errorf("FileSize = %v, want %d", ev.FileSize, *tt.want)
			}
		})
	}
}

func ptr(n int64) *int64 { return &n }

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	inputs := []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T09:00:00+09:00",
		"2024-01-01T09:00:00+0900",
		"2024-01-01T00:00Z",
		"2024-01-01T00:00:00",
		"2024-01-01",
		"20240101T000000Z",
		"20240101",
	}
	for _, in := range inputs {
		got, err := ParseTime(in)
		if err != nil {
			t.Errorf("ParseTime(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("expected error for free-form text")
	}
}
