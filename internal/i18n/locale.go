// Package i18n resolves the response locale for a request. The engine
// renders English and Arabic; everything else maps to the configured
// fallback.
package i18n

import (
	"golang.org/x/text/language"
)

const (
	English = "en"
	Arabic  = "ar"
)

var supported = []language.Tag{
	language.English, // index 0, also the matcher fallback
	language.Arabic,
}

var matcher = language.NewMatcher(supported)

// Match resolves an Accept-Language header to a supported locale code.
func Match(acceptHeader, fallback string) string {
	if acceptHeader == "" {
		return Normalize(fallback)
	}
	tags, _, err := language.ParseAcceptLanguage(acceptHeader)
	if err != nil || len(tags) == 0 {
		return Normalize(fallback)
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Normalize(fallback)
	}
	if index == 1 {
		return Arabic
	}
	return English
}

// Normalize maps any locale string onto a supported code.
func Normalize(locale string) string {
	if locale == Arabic {
		return Arabic
	}
	return English
}
