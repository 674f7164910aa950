package message

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	waBold   = regexp.MustCompile(`\*([^*\n]+)\*`)
	waStrike = regexp.MustCompile(`~([^~\n]+)~`)
)

var previewMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.Strikethrough,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// Preview renders WhatsApp markup (*bold*, _italic_, ~strike~) as HTML.
// Raw HTML in text is not passed through.
func Preview(text string) (string, error) {
	md := waBold.ReplaceAllString(text, "**$1**")
	md = waStrike.ReplaceAllString(md, "~~$1~~")

	var buf bytes.Buffer
	if err := previewMarkdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering preview: %w", err)
	}
	return buf.String(), nil
}
