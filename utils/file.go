package utils

import (
	"path"
	"strings"
)

// FileStem returns the base name of a slash separated path without its extension,
// e.g. "trip/Beach-Day.JPG" -> "Beach-Day".
func FileStem(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// BaseName returns the last element of a slash separated path.
func BaseName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}
