// Package extract implements the deterministic field extractor: a pure
// function from raw citizen text to the partial complaint fields it carries.
// Unmatched patterns simply omit keys; extraction never fails.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Keys produced by Extract. type_hint is a raw label or positional number
// that still has to go through the type resolver.
const (
	KeyTypeHint    = "type_hint"
	KeyDescription = "description"
	KeyLatitude    = "latitude"
	KeyLongitude   = "longitude"
	KeyReference   = "reference"
)

var (
	reType = regexp.MustCompile(`(?i)(?:^|\b)(?:type|tipo)\s*:\s*([^\n.]+)`)
	reDesc = regexp.MustCompile(`(?i)(?:^|\b)(?:description|descripcion|descripción)\s*:\s*(.+)`)
	// Combined lat/lng pattern: accepts lat/latitud(e), lon/lng/longitud(e),
	// ':'/'='/whitespace separators, optional sign and decimals, and content
	// (including newlines) between the two values.
	reLatLng = regexp.MustCompile(`(?is)(?:lat(?:itude?|itud)?)\s*[:=]?\s*(-?\d+(?:\.\d+)?)\s*.*?(?:lon(?:gitude?|gitud)?|lng)\s*[:=]?\s*(-?\d+(?:\.\d+)?)`)
	reRef    = regexp.MustCompile(`(?i)(?:^|\b)(?:reference|referencia)\s*:\s*(.+)`)
	// A free-text "address:" is deliberately folded into reference:
	// resolved_address is reserved for the geocoder's output.
	reAddr = regexp.MustCompile(`(?i)(?:^|\b)(?:address|direccion|dirección)\s*:\s*(.+)`)
	// Bare single digit 1-9, optionally prefixed with "type"/"tipo", taken as
	// a positional type hint when no explicit type was captured. The trailing
	// \b keeps "3," and "3?" matching while "31" and "3a" do not.
	reBareDigit = regexp.MustCompile(`(?:^|\s)(?:(?:type|tipo)\s*)?([1-9])\b`)
)

// Extract scans the text for complaint fields. Matching is case-insensitive
// and tolerant of multiline input. The returned map only contains keys that
// actually matched.
func Extract(text string) map[string]any {
	out := map[string]any{}

	if m := reType.FindStringSubmatch(text); m != nil {
		out[KeyTypeHint] = strings.TrimSpace(m[1])
	}
	if m := reDesc.FindStringSubmatch(text); m != nil {
		out[KeyDescription] = strings.TrimSpace(m[1])
	}
	if m := reLatLng.FindStringSubmatch(text); m != nil {
		lat, errLat := strconv.ParseFloat(m[1], 64)
		lng, errLng := strconv.ParseFloat(m[2], 64)
		if errLat == nil && errLng == nil {
			out[KeyLatitude] = lat
			out[KeyLongitude] = lng
		}
	}
	if m := reRef.FindStringSubmatch(text); m != nil {
		out[KeyReference] = strings.TrimSpace(m[1])
	}
	if m := reAddr.FindStringSubmatch(text); m != nil {
		out[KeyReference] = strings.TrimSpace(m[1])
	}

	if _, ok := out[KeyTypeHint]; !ok {
		if m := reBareDigit.FindStringSubmatch(strings.ToLower(text)); m != nil {
			out[KeyTypeHint] = m[1]
		}
	}

	return out
}

// HasUsefulFields reports whether the extraction carries anything that
// justifies opening a draft.
func HasUsefulFields(fields map[string]any) bool {
	for _, k := range []string{KeyTypeHint, KeyDescription, KeyLatitude, KeyLongitude, KeyReference} {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

var confirmWords = map[string]bool{
	"si": true, "sí": true, "si.": true, "sí.": true,
	"yes": true, "send": true, "submit": true,
	"enviar": true, "confirmo": true, "confirmo enviar": true, "enviar denuncia": true,
}

var cancelWords = map[string]bool{
	"no": true, "no.": true, "cancel": true, "not yet": true,
	"cancelar": true, "anular": true, "aun no": true, "aún no": true,
}

// IsConfirmation reports whether the message is an explicit submit confirmation.
func IsConfirmation(text string) bool {
	return confirmWords[normalize(text)]
}

// IsCancellation reports whether the message backs out of submitting.
func IsCancellation(text string) bool {
	return cancelWords[normalize(text)]
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
