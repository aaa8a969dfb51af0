// Package desktop generates freedesktop.org desktop entries: the text
// descriptor a desktop environment uses to present the application.
package desktop

import (
	"fmt"
	"strings"
)

// ProtocolAssociation declares URL schemes the application handles.
type ProtocolAssociation struct {
	Name    string
	Schemes []string
}

// FileAssociation declares a file type the application handles.
type FileAssociation struct {
	Ext      string
	MimeType string
}

// Entry holds the resolved fields a desktop file is generated from. It is
// fully resolved configuration; generation never consults the file
// selection or the archive.
type Entry struct {
	// ProductName becomes Name.
	ProductName string
	// ExecutableName is the installed binary name; Exec and Icon derive
	// from it.
	ExecutableName string
	// Description becomes Comment when set.
	Description string
	// Properties are extra key/value pairs appended in declaration order.
	Properties [][2]string
	// Protocols contribute x-scheme-handler MIME types.
	Protocols []ProtocolAssociation
	// FileAssociations contribute their MIME types.
	FileAssociations []FileAssociation
	// Categories joins into the Categories field when non-empty.
	Categories []string
}

// Generate renders the desktop entry text. It is a pure function of the
// resolved fields; field order is fixed so output is deterministic.
func Generate(e Entry) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")

	write := func(key, val string) {
		fmt.Fprintf(&b, "%s=%s\n", key, val)
	}

	write("Name", e.ProductName)
	write("Exec", fmt.Sprintf("/usr/bin/%s %%U", e.ExecutableName))
	write("Terminal", "false")
	write("Type", "Application")
	write("Icon", e.ExecutableName)
	for _, kv := range e.Properties {
		write(kv[0], kv[1])
	}
	if e.Description != "" {
		write("Comment", e.Description)
	}

	var mimes []string
	for _, p := range e.Protocols {
		for _, scheme := range p.Schemes {
			mimes = append(mimes, "x-scheme-handler/"+scheme)
		}
	}
	for _, f := range e.FileAssociations {
		if f.MimeType != "" {
			mimes = append(mimes, f.MimeType)
		}
	}
	if len(mimes) > 0 {
		write("MimeType", strings.Join(mimes, ";"))
	}

	if len(e.Categories) > 0 {
		write("Categories", strings.Join(e.Categories, ";"))
	}

	return b.String()
}
