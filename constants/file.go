package constants

import "strings"

// PDFExt is the only intake format.
const PDFExt = "pdf"

// DuplicatePrefix marks duplicate files moved into the trash directory.
const DuplicatePrefix = "DUPLICATE_"

// AllowedExtensions holds the allowed file extensions for document intake.
var AllowedExtensions = map[string]struct{}{
	PDFExt: {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt checks a file extension against the intake set.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
