// Package artifact renders catalog entries into PDF and HTML artifacts and
// uploads them to object storage.
package artifact

import (
	"strings"

	"github.com/sells-group/standards-cli/internal/model"
)

// DefaultPrefix is the object key prefix used when none is configured.
const DefaultPrefix = "FDA_STANDARDS"

// titleWords is how many leading title words go into an artifact name.
const titleWords = 3

var nameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_",
	"|", "_", "?", "_", "*", "_", "\n", "_", "\r", "_",
)

// Keys is the pair of object keys an entry's artifacts are stored under.
type Keys struct {
	PDF  string
	HTML string
}

// Name builds the file stem for an entry: the recognition number followed
// by the first three title words, joined with underscores.
func Name(e model.CatalogEntry) string {
	words := strings.Fields(e.Title)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return SanitizeName(e.RecognitionNumber + "_" + strings.Join(words, "_"))
}

// SanitizeName replaces characters that are unsafe in object keys and file
// names with '_' and trims surrounding whitespace.
func SanitizeName(s string) string {
	return strings.TrimSpace(nameReplacer.Replace(s))
}

// KeysFor returns the PDF and HTML keys of e under prefix.
func KeysFor(prefix string, e model.CatalogEntry) Keys {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	name := Name(e)
	return Keys{
		PDF:  prefix + "/PDF/" + name + ".pdf",
		HTML: prefix + "/HTML/" + name + ".html",
	}
}
