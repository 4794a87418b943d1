package storage

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// detectionWords caps how much text is fed to the detector.
const detectionWords = 100

// detectLanguage returns the ISO 639-3 code of the item text, or ""
// when there is nothing to detect or the guess is unreliable.
func detectLanguage(title, text string) string {
	words := strings.Fields(text)
	if len(words) > detectionWords {
		words = words[:detectionWords]
	}

	sample := strings.TrimSpace(title + " " + strings.Join(words, " "))
	if sample == "" {
		return ""
	}

	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}
