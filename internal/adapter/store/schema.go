package store

import (
	"path/filepath"
	"strings"
)

const (
	schemaPrefix  = "specmem_"
	schemaDefault = "default"
)

// SchemaForPath derives the isolation schema name for a project path.
// The basename is lower-cased, runs of non-alphanumeric characters
// collapse to a single underscore, leading/trailing underscores are
// trimmed, and an empty result falls back to a fixed token. The mapping
// is deterministic, so the same project always lands in the same schema.
func SchemaForPath(projectPath string) string {
	base := strings.ToLower(filepath.Base(projectPath))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			if s := b.String(); s != "" && !strings.HasSuffix(s, "_") {
				b.WriteByte('_')
			}
		}
	}

	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = schemaDefault
	}
	return schemaPrefix + name
}
