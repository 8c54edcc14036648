package doc

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// PathParts is a canonical path split into its components.
type PathParts struct {
	Category     Category
	DocumentType DocumentType
	Filename     string
}

// rootExceptions are root-level files allowed outside the canonical layout.
var rootExceptions = map[string]bool{
	"README":       true,
	"README.md":    true,
	"CHANGELOG":    true,
	"CHANGELOG.md": true,
	"LICENSE":      true,
	"LICENSE.md":   true,
	"LICENSE.txt":  true,
}

// reservedDirs are top-level directories that hold test artifacts.
var reservedDirs = map[string]bool{
	"tests":    true,
	"testdata": true,
	"fixtures": true,
}

// ConstructPath builds the canonical path category/type/filename. Valid
// filenames are NFC; any other spelling is normalised to NFC first, so
// ParsePath returns the composed form and equivalent spellings map to one
// path.
func ConstructPath(category Category, docType DocumentType, filename string) string {
	return string(category) + "/" + string(docType) + "/" + norm.NFC.String(filename)
}

// ParsePath splits a canonical path. It fails for exception paths too; use
// IsExceptionPath to recognise those.
func ParsePath(p string) (PathParts, error) {
	if err := checkSegments(p); err != nil {
		return PathParts{}, err
	}
	segments := strings.Split(p, "/")
	if len(segments) < 3 {
		return PathParts{}, &PathStructureError{Path: p, Reason: "fewer than three segments"}
	}
	category := Category(segments[0])
	if !category.Valid() {
		return PathParts{}, &PathStructureError{Path: p, Reason: "unknown category " + segments[0]}
	}
	docType := DocumentType(segments[1])
	if !docType.Valid() {
		return PathParts{}, &PathStructureError{Path: p, Reason: "unknown document type " + segments[1]}
	}
	return PathParts{
		Category:     category,
		DocumentType: docType,
		Filename:     norm.NFC.String(strings.Join(segments[2:], "/")),
	}, nil
}

// IsExceptionPath reports whether p is on the legacy allowlist: root-level
// README/CHANGELOG/LICENSE files, module-local READMEs, and anything under a
// reserved test-artifact directory.
func IsExceptionPath(p string) bool {
	if checkSegments(p) != nil {
		return false
	}
	segments := strings.Split(p, "/")
	if len(segments) == 1 {
		return rootExceptions[segments[0]]
	}
	if reservedDirs[segments[0]] {
		return true
	}
	base := segments[len(segments)-1]
	return base == "README.md" || base == "README"
}

// IsCanonical reports whether p is exactly the path ConstructPath would build
// for the given category and type.
func IsCanonical(p string, category Category, docType DocumentType) bool {
	parts, err := ParsePath(p)
	if err != nil {
		return false
	}
	return parts.Category == category && parts.DocumentType == docType && p == ConstructPath(category, docType, parts.Filename)
}

// checkSegments rejects paths that could escape a root or are not relative
// slash-separated paths.
func checkSegments(p string) error {
	if p == "" {
		return &PathStructureError{Path: p, Reason: "empty path"}
	}
	if strings.HasPrefix(p, "/") {
		return &PathStructureError{Path: p, Reason: "absolute path"}
	}
	if strings.Contains(p, `\`) {
		return &PathStructureError{Path: p, Reason: "backslash separator"}
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return &PathStructureError{Path: p, Reason: "empty segment"}
		case ".", "..":
			return &PathStructureError{Path: p, Reason: "relative segment " + seg}
		}
	}
	return nil
}

// Slugify turns a title into a filename stem: lowercase letters and digits
// joined by single hyphens.
func Slugify(title string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range norm.NFKD.String(strings.ToLower(title)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// drop combining marks left by decomposition
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			hyphen = false
		default:
			if !hyphen && b.Len() > 0 {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// baseName returns the last segment of a slash-separated path.
func baseName(p string) string {
	return path.Base(p)
}
