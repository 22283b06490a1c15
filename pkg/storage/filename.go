package storage

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"
)

var filenameToken = regexp.MustCompile(`filename=.*;`)

// FileNameFromDisposition derives a file name from a Content-Disposition
// header value. The semicolon-terminated filename token is preferred; a
// header without one is parsed as a media type instead. The result is a
// bare base name, with defaultExt appended when it has no '.' at all.
// ok is false when no usable name could be found.
func FileNameFromDisposition(header, defaultExt string) (name string, ok bool) {
	if header == "" {
		return "", false
	}

	if token := filenameToken.FindString(header); token != "" {
		name = strings.NewReplacer("filename=", "", ";", "", `"`, "").Replace(token)
	} else if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	}

	name = baseName(name)
	if name == "" {
		return "", false
	}

	if !strings.Contains(name, ".") {
		name += defaultExt
	}
	return name, true
}

// baseName strips any directory part so a header cannot point outside
// the target directory
func baseName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}

// SafeSegment turns an API-provided name into a single directory segment
func SafeSegment(name string) string {
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimSpace(name))
	switch name {
	case "", ".", "..":
		return "_"
	}
	return name
}
