package image

import (
	"net/url"
	"strings"
)

// ScrubIdentifier unescapes an identifier and strips any parent directory
// reference from it.
func ScrubIdentifier(identifier string) (string, error) {
	clean, err := url.PathUnescape(identifier)
	if err != nil {
		return "", err
	}

	for strings.Contains(clean, "../") {
		clean = strings.Replace(clean, "../", "", -1)
	}
	clean = strings.TrimPrefix(clean, "/")
	return clean, nil
}
