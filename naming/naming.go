// Package naming converts identifiers between the declared lowerCamel style
// and the storage snake_case convention used for tables and columns.
//
// The canonical declared form uses single capitals at word boundaries
// (userId, createdAt). For identifiers in canonical form the conversion is
// lossless in both directions:
//
//	naming.Storage("createdAt") // "created_at"
//	naming.Declared("created_at") // "createdAt"
package naming

import (
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// Storage converts a declared identifier to the storage snake_case form.
func Storage(name string) string {
	return inflect.Underscore(name)
}

// Declared converts a storage identifier back to the declared lowerCamel form.
func Declared(name string) string {
	return inflect.CamelizeDownFirst(name)
}

// Pascal converts an identifier to PascalCase. Used for entity labels.
func Pascal(name string) string {
	return inflect.Camelize(name)
}

// Label converts a storage or slug identifier to a human-readable label:
// "add_email" and "add-email" both become "Add Email".
func Label(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return titleCaser.String(name)
}

// TableName derives the default storage table name for a declared entity
// name: "OrderItem" becomes "order_items".
func TableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}
