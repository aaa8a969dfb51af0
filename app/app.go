// Package app loads the package manifest and its builder configuration and
// resolves the properties the packaging pipeline consumes: display names,
// file rules, icon locations, output directory.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/epack/epack/internal/env"
)

// DefaultOutputDir is used when directories.output is not configured.
const DefaultOutputDir = "epack_out"

// configFallback is read beside the manifest when package.json carries no
// build key.
const configFallback = "electron-builder.yml"

// Sentinel errors for manifest/config loading.
var (
	// ErrNoConfig is returned when neither the build key nor the
	// fallback config file provides a configuration.
	ErrNoConfig = errors.New("app: no builder configuration found")

	// ErrUnknownConfigExt is returned for config files in an unsupported
	// syntax.
	ErrUnknownConfigExt = errors.New("app: unknown config file extension")
)

// Manifest is the subset of package.json the pipeline reads directly.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Main        string `json:"main"`

	// Author is normalized from either the string or the object form
	// package.json allows.
	Author string `json:"-"`
}

// App couples one manifest with its builder configuration.
type App struct {
	Manifest Manifest
	Config   *Config
	// Root is the directory holding the manifest; all relative
	// configuration paths resolve against it.
	Root string

	raw map[string]any
}

// Load reads package.json and takes the configuration from its build key,
// falling back to electron-builder.yml next to it.
func Load(packagePath string) (*App, error) {
	a, raw, err := loadManifest(packagePath)
	if err != nil {
		return nil, err
	}

	if build := obj(raw["build"]); build != nil {
		a.Config = parseConfig(build)
		return a, nil
	}

	fallback := filepath.Join(a.Root, configFallback)
	doc, err := decodeConfigFile(fallback)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: package.json has no build key and %s is absent", ErrNoConfig, configFallback)
		}
		return nil, err
	}
	a.Config = parseConfig(doc)
	return a, nil
}

// LoadWithConfig reads package.json and a separate configuration file,
// dispatching on the config file extension: .json, .yml/.yaml or .toml.
func LoadWithConfig(packagePath, configPath string) (*App, error) {
	a, _, err := loadManifest(packagePath)
	if err != nil {
		return nil, err
	}
	doc, err := decodeConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	a.Config = parseConfig(doc)
	return a, nil
}

func loadManifest(packagePath string) (*App, map[string]any, error) {
	data, err := os.ReadFile(packagePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest %q: %w", packagePath, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse manifest %q: %w", packagePath, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, nil, fmt.Errorf("parse manifest %q: %w", packagePath, err)
	}
	if manifest.Name == "" {
		return nil, nil, fmt.Errorf("manifest %q: missing name", packagePath)
	}
	switch author := raw["author"].(type) {
	case string:
		manifest.Author = author
	case map[string]any:
		manifest.Author = str(author["name"])
	}

	return &App{
		Manifest: manifest,
		Root:     filepath.Dir(packagePath),
		raw:      raw,
	}, raw, nil
}

func decodeConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var doc map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownConfigExt, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return doc, nil
}

// SectionFor returns the platform-specific configuration block.
func (a *App) SectionFor(p env.Platform) *Section {
	switch p {
	case env.Windows:
		return &a.Config.Win
	case env.Darwin:
		return &a.Config.Mac
	default:
		return &a.Config.Linux
	}
}

// resolve walks the platform → base → manifest fallback chain.
func (a *App) resolve(p env.Platform, pick func(*Overridable) string, manifest string) string {
	if v := pick(&a.SectionFor(p).Overridable); v != "" {
		return v
	}
	if v := pick(&a.Config.Base.Overridable); v != "" {
		return v
	}
	return manifest
}

// ProductName returns the display name for the platform.
func (a *App) ProductName(p env.Platform) string {
	return a.resolve(p, func(o *Overridable) string { return o.ProductName }, a.Manifest.Name)
}

// Description returns the resolved description, possibly empty.
func (a *App) Description(p env.Platform) string {
	return a.resolve(p, func(o *Overridable) string { return o.Description }, a.Manifest.Description)
}

// Category returns the freedesktop menu category, platform section first,
// possibly empty.
func (a *App) Category(p env.Platform) string {
	if v := a.SectionFor(p).Category; v != "" {
		return v
	}
	return a.Config.Base.Category
}

// ExecutableName returns the file-safe installed binary name.
func (a *App) ExecutableName(p env.Platform) (string, error) {
	name := a.resolve(p, func(o *Overridable) string { return o.ExecutableName }, a.Manifest.Name)
	return FilesafeName(name)
}

// DesktopName returns the desktop entry file name, derived from the
// package name unless configured.
func (a *App) DesktopName(p env.Platform) (string, error) {
	if name := a.resolve(p, func(o *Overridable) string { return o.DesktopName }, ""); name != "" {
		return name, nil
	}
	safe, err := FilesafeName(a.Manifest.Name)
	if err != nil {
		return "", err
	}
	return safe + ".desktop", nil
}

// IconLocations returns the configured icon paths resolved against Root,
// with ${...} templates expanded. Platform sections take precedence over
// the base section, but all configured locations contribute sizes.
func (a *App) IconLocations(e env.Environment) ([]string, error) {
	var locations []string
	for _, icon := range []string{a.SectionFor(e.Platform).Icon, a.Config.Base.Icon} {
		if icon == "" {
			continue
		}
		expanded, err := env.Expand(icon, e)
		if err != nil {
			return nil, err
		}
		locations = append(locations, filepath.Join(a.Root, filepath.FromSlash(expanded)))
	}
	return locations, nil
}

// OutputDir returns the build output directory resolved against Root.
func (a *App) OutputDir(e env.Environment) (string, error) {
	dir := a.Config.OutputDir
	if dir == "" {
		dir = DefaultOutputDir
	}
	expanded, err := env.Expand(dir, e)
	if err != nil {
		return "", err
	}
	return filepath.Join(a.Root, filepath.FromSlash(expanded)), nil
}

// PatchedManifest merges the configured extraMetadata over the raw
// package.json value and re-serializes it; the result is embedded in the
// output so the runtime sees the adjusted manifest.
func (a *App) PatchedManifest(p env.Platform) ([]byte, error) {
	patched := make(map[string]any, len(a.raw))
	for k, v := range a.raw {
		patched[k] = v
	}
	for _, extra := range []map[string]any{a.Config.Base.ExtraMetadata, a.SectionFor(p).ExtraMetadata} {
		for k, v := range extra {
			patched[k] = v
		}
	}
	out, err := json.Marshal(patched)
	if err != nil {
		return nil, fmt.Errorf("patch manifest: %w", err)
	}
	return out, nil
}

// FilesafeName converts a package name to a name safe for file systems and
// desktop entries: the scope marker is dropped and the scope separator
// becomes a dash. Any remaining non [a-zA-Z0-9_-] character is an error.
func FilesafeName(name string) (string, error) {
	safe := strings.ReplaceAll(strings.ReplaceAll(name, "@", ""), "/", "-")
	for _, ch := range safe {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
		default:
			return "", fmt.Errorf("invalid package name: %q", name)
		}
	}
	return safe, nil
}
