// Package seeds embeds the built-in module definitions: attendance, class,
// student and teacher, with their recognized roles and system fields.
package seeds

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/artpar/fieldschema/core/schema"
)

//go:embed *.yaml
var files embed.FS

// FS returns the embedded definition files.
func FS() fs.FS {
	return files
}

// Modules parses every built-in module definition.
func Modules() ([]schema.Module, error) {
	return schema.ParseFS(files, ".")
}

// Module returns the built-in definition with the given name.
func Module(name string) (schema.Module, error) {
	mods, err := Modules()
	if err != nil {
		return schema.Module{}, err
	}
	for _, m := range mods {
		if m.Name == name {
			return m, nil
		}
	}
	return schema.Module{}, fmt.Errorf("built-in module %q: %w", name, schema.ErrNotFound)
}
