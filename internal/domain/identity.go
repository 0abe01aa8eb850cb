package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips diacritics: "Chuvas Intensas" and
// "CHUVAS INTENSAS" fold to the same string, as do "Ventania" and "Ventânia".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// EventTypeKey reduces an event description to a slug that survives the
// rewording INMET applies between republications: case, accents, punctuation
// and singular/plural of each word are ignored.
//
//	"Chuvas Intensas"  -> "chuva-intensa"
//	"Chuva intensa."   -> "chuva-intensa"
//	"Acumulado de Chuva" -> "acumulado-de-chuva"
func EventTypeKey(description string) string {
	words := strings.FieldsFunc(fold(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			words[i] = strings.TrimSuffix(w, "s")
		}
	}
	return strings.Join(words, "-")
}

// IdentityKey builds the stable key for an alert from the upstream alert code,
// the municipality and the event type. Array position never takes part, so
// reordering the feed does not change identity.
func IdentityKey(alertCode, cityCode, eventType string) string {
	return fmt.Sprintf("%s:%s:%s", strings.TrimSpace(cityCode), strings.TrimSpace(alertCode), eventType)
}
