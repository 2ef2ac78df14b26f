// Package i18n resolves user-facing messages for domain error codes.
//
// Messages are kept in per-locale Go maps rather than external catalog
// files; the surface is small enough that a build-time map per locale is
// easier to review than a file format.
package i18n

import (
	"bytes"
	"net/http"
	"strings"
	"text/template"

	"golang.org/x/text/language"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
)

// supported lists the locales with message catalogs. The first entry is
// the fallback for unmatched requests.
var supported = []language.Tag{
	language.AmericanEnglish,
	language.Japanese,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[language.Tag]map[apperrors.Code]string{
	language.AmericanEnglish: messagesEnUS,
	language.Japanese:        messagesJaJP,
}

// Default returns the fallback language tag.
func Default() language.Tag {
	return supported[0]
}

// ResolveTag picks the best supported locale for the request based on the
// Accept-Language header.
func ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return Default()
	}
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return Default()
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return Default()
	}
	_, index, _ := matcher.Match(tags...)
	return supported[index]
}

// Message renders the user-facing message for a code in the given locale.
// Metadata values are substituted into {{.Field}} template slots. Unknown
// codes fall back to the code string itself so callers always get text.
func Message(tag language.Tag, code apperrors.Code, metadata map[string]string) string {
	catalog, ok := catalogs[tag]
	if !ok {
		catalog = messagesEnUS
	}
	raw, ok := catalog[code]
	if !ok {
		raw = messagesEnUS[code]
	}
	if raw == "" {
		return string(code)
	}
	if !strings.Contains(raw, "{{") {
		return raw
	}
	tmpl, err := template.New(string(code)).Parse(raw)
	if err != nil {
		return raw
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return raw
	}
	return buf.String()
}
