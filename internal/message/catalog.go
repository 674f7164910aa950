// Package message builds WhatsApp notification text from Drive events.
package message

import "sort"

// Template keys.
const (
	KeyFileShared        = "file_shared"
	KeyFolderShared      = "folder_shared"
	KeyPermissionChanged = "permission_changed"
	KeyTestMessage       = "test_message"
	KeyCustom            = "custom"
)

// Placeholders lists every field a template may reference as {name}.
var Placeholders = []string{
	"fileName", "sharedBy", "fileType", "fileSize",
	"fileUrl", "permission", "message", "timestamp",
}

var builtinTemplates = map[string]string{
	KeyFileShared: `🔔 *Google Drive notification*

📁 A file was shared with you!

*File:* {fileName}
*Shared by:* {sharedBy}
*Type:* {fileType}
*Size:* {fileSize}

🔗 *Link:* {fileUrl}

_This message was sent automatically_`,

	KeyFolderShared: `🔔 *Google Drive notification*

📂 A folder was shared with you!

*Folder:* {fileName}
*Shared by:* {sharedBy}

🔗 *Link:* {fileUrl}

_This message was sent automatically_`,

	KeyPermissionChanged: `🔔 *Google Drive notification*

⚙️ File permissions changed

*File:* {fileName}
*Changed by:* {sharedBy}
*New permission:* {permission}

🔗 *Link:* {fileUrl}`,

	KeyTestMessage: `🧪 *Test message*

WhatsApp delivery is working!

Time: {timestamp}
Status: ✅ OK`,

	KeyCustom: "{message}",
}

// Catalog maps template keys to template bodies.
type Catalog struct {
	templates map[string]string
}

// NewCatalog returns the built-in templates with overrides applied. Empty
// override bodies are ignored.
func NewCatalog(overrides map[string]string) *Catalog {
	templates := make(map[string]string, len(builtinTemplates)+len(overrides))
	for k, v := range builtinTemplates {
		templates[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			templates[k] = v
		}
	}
	return &Catalog{templates: templates}
}

// Lookup returns the template for key. A missing key is not an error.
func (c *Catalog) Lookup(key string) (string, bool) {
	t, ok := c.templates[key]
	return t, ok
}

// Keys returns all template keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
