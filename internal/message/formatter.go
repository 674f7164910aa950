package message

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ziadkadry99/drivenotify/internal/event"
)

// Absent is rendered for optional fields the event does not carry.
const Absent = "-"

const timestampLayout = "2006-01-02 15:04:05 MST"

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// MissingFieldError reports a placeholder with no corresponding field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("template references unknown field %q", e.Field)
}

// Formatter renders events through a Catalog.
type Formatter struct {
	catalog  *Catalog
	location *time.Location
	now      func() time.Time
}

// NewFormatter creates a Formatter rendering timestamps in loc. A nil loc
// means UTC.
func NewFormatter(catalog *Catalog, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{catalog: catalog, location: loc, now: time.Now}
}

// Catalog returns the formatter's template catalog.
func (f *Formatter) Catalog() *Catalog { return f.catalog }

// Format renders ev with the template named by its event type. Unknown event
// types get a one-line summary through the custom template. A template that
// cannot be filled is returned unformatted.
func (f *Formatter) Format(ev event.DriveEvent) string {
	tmpl, ok := f.catalog.Lookup(ev.EventType)
	if !ok {
		return f.FormatCustom(summary(ev))
	}

	out, err := Render(tmpl, f.Fields(ev))
	if err != nil {
		return tmpl
	}
	return out
}

// FormatCustom renders text through the custom template.
func (f *Formatter) FormatCustom(text string) string {
	tmpl, ok := f.catalog.Lookup(KeyCustom)
	if !ok {
		return text
	}
	fields := map[string]string{"message": text}
	out, err := Render(tmpl, fields)
	if err != nil {
		return text
	}
	return out
}

// FormatTest renders the test message stamped with the current time.
func (f *Formatter) FormatTest() string {
	tmpl, ok := f.catalog.Lookup(KeyTestMessage)
	if !ok {
		return f.FormatCustom("WhatsApp delivery test")
	}
	fields := map[string]string{"timestamp": f.now().In(f.location).Format(timestampLayout)}
	out, err := Render(tmpl, fields)
	if err != nil {
		return tmpl
	}
	return out
}

// Fields derives the placeholder values for ev.
func (f *Formatter) Fields(ev event.DriveEvent) map[string]string {
	sharedBy := ev.SharedBy
	if sharedBy == "" {
		sharedBy = ev.Owner
	}

	size := Absent
	if ev.FileSize != nil && *ev.FileSize >= 0 {
		size = humanize.Bytes(uint64(*ev.FileSize))
	}

	ts := ev.Timestamp
	if t, err := event.ParseTime(ev.Timestamp); err == nil {
		ts = t.In(f.location).Format(timestampLayout)
	}

	return map[string]string{
		"fileName":   ev.FileName,
		"sharedBy":   orAbsent(sharedBy),
		"fileType":   orAbsent(ev.FileType),
		"fileSize":   size,
		"fileUrl":    orAbsent(ev.FileURL),
		"permission": orAbsent(ev.Permission),
		"message":    summary(ev),
		"timestamp":  orAbsent(ts),
	}
}

// Render replaces every {name} in tmpl with fields[name]. It fails on the
// first placeholder that has no field.
func Render(tmpl string, fields map[string]string) (string, error) {
	var missing string
	out := placeholderRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := fields[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", &MissingFieldError{Field: missing}
	}
	return out, nil
}

// summary is the generic line used for event types without a template.
func summary(ev event.DriveEvent) string {
	var b strings.Builder
	b.WriteString(ev.EventType)
	b.WriteString(": ")
	b.WriteString(ev.FileName)
	if ev.FileURL != "" {
		b.WriteString("\n")
		b.WriteString(ev.FileURL)
	}
	return b.String()
}

func orAbsent(s string) string {
	if strings.TrimSpace(s) == "" {
		return Absent
	}
	return s
}
