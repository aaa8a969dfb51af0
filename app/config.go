package app

import (
	"sort"

	"github.com/epack/epack/selector"
)

// CopyDef is one entry of a files/extraResources list: either a plain glob
// string or a {from, to, filter} file set.
type CopyDef struct {
	Glob string
	Set  *selector.FileSet
}

// Protocol declares URL schemes the application registers for.
type Protocol struct {
	Name    string
	Schemes []string
}

// FileAssociation declares a handled file type.
type FileAssociation struct {
	Ext      string
	MimeType string
}

// Overridable are the properties resolvable through the platform section →
// base config → manifest fallback chain.
type Overridable struct {
	ProductName    string
	ExecutableName string
	Description    string
	DesktopName    string
}

// Section is one platform-specific (or the base) configuration block.
type Section struct {
	Overridable
	Icon              string
	Category          string
	DesktopProperties [][2]string
	ExtraMetadata     map[string]any
}

// Config is the resolved builder configuration, independent of the syntax
// it was written in.
type Config struct {
	Base  Section
	Linux Section
	Win   Section
	Mac   Section

	Copyright        string
	Files            []CopyDef
	AsarUnpack       []string
	ExtraResources   []CopyDef
	OutputDir        string
	Protocols        []Protocol
	FileAssociations []FileAssociation
}

// parseConfig coerces a generically decoded configuration document
// (JSON/YAML/TOML all land in map[string]any) into a Config. Unknown keys
// are ignored, matching the tolerant source-ecosystem convention.
func parseConfig(doc map[string]any) *Config {
	cfg := &Config{
		Base:           parseSection(doc),
		Copyright:      str(doc["copyright"]),
		Files:          copyDefs(doc["files"]),
		AsarUnpack:     strList(doc["asarUnpack"]),
		ExtraResources: copyDefs(doc["extraResources"]),
	}

	if dirs := obj(doc["directories"]); dirs != nil {
		cfg.OutputDir = str(dirs["output"])
	}

	cfg.Linux = parseSection(obj(doc["linux"]))
	cfg.Win = parseSection(obj(doc["win"]))
	cfg.Mac = parseSection(obj(doc["mac"]))

	for _, p := range list(doc["protocols"]) {
		if po := obj(p); po != nil {
			cfg.Protocols = append(cfg.Protocols, Protocol{
				Name:    str(po["name"]),
				Schemes: strList(po["schemes"]),
			})
		}
	}
	for _, f := range list(doc["fileAssociations"]) {
		if fo := obj(f); fo != nil {
			cfg.FileAssociations = append(cfg.FileAssociations, FileAssociation{
				Ext:      str(fo["ext"]),
				MimeType: str(fo["mimeType"]),
			})
		}
	}
	return cfg
}

func parseSection(doc map[string]any) Section {
	if doc == nil {
		return Section{}
	}
	s := Section{
		Overridable: Overridable{
			ProductName:    str(doc["productName"]),
			ExecutableName: str(doc["executableName"]),
			Description:    str(doc["description"]),
			DesktopName:    str(doc["desktopName"]),
		},
		Icon:          str(doc["icon"]),
		Category:      str(doc["category"]),
		ExtraMetadata: obj(doc["extraMetadata"]),
	}
	// Desktop properties come from an unordered map; sort keys so the
	// generated entry is deterministic regardless of config syntax.
	if props := obj(doc["desktop"]); props != nil {
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.DesktopProperties = append(s.DesktopProperties, [2]string{k, str(props[k])})
		}
	}
	return s
}

// Coercion helpers over generically decoded documents. Config syntax
// parsing itself is delegated to the codec packages; these only absorb the
// string-or-list and def-or-list shape variants the ecosystem allows.

func str(v any) string {
	s, _ := v.(string)
	return s
}

func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

// strList accepts a single string or a list of strings.
func strList(v any) []string {
	if s, ok := v.(string); ok {
		return []string{s}
	}
	var out []string
	for _, item := range list(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// copyDefs accepts a single def or a list of defs, where each def is a glob
// string or a {from, to, filter} object.
func copyDefs(v any) []CopyDef {
	items := list(v)
	if items == nil && v != nil {
		items = []any{v}
	}
	var out []CopyDef
	for _, item := range items {
		switch d := item.(type) {
		case string:
			out = append(out, CopyDef{Glob: d})
		case map[string]any:
			out = append(out, CopyDef{Set: &selector.FileSet{
				From:    str(d["from"]),
				To:      str(d["to"]),
				Filters: strList(d["filter"]),
			}})
		}
	}
	return out
}
