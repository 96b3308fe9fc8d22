package meds

import (
	"regexp"
	"strings"
)

// Vital-sign patterns. Each vital is matched independently; a vital that is
// not present in the text is simply omitted from the result, never defaulted.
var (
	// bloodPressureRe matches the spoken forms "140 zu 90", "140 über 90",
	// "140 auf 90", "140 durch 90" and the written "140/90".
	bloodPressureRe = regexp.MustCompile(`(?i)\b(\d{2,3})\s*(?:zu|über|auf|durch|/)\s*(\d{2,3})\b`)

	pulseRe       = regexp.MustCompile(`(?i)\bpuls\b\D{0,12}?(\d{2,3})\b`)
	temperatureRe = regexp.MustCompile(`(?i)\b(?:temperatur|fieber)\b\D{0,12}?(\d{2}(?:[.,]\d)?)\b`)
	weightRe      = regexp.MustCompile(`(?i)\b(?:gewicht|wiegt)\b\D{0,12}?(\d{2,3}(?:[.,]\d)?)\b`)
	saturationRe  = regexp.MustCompile(`(?i)\b(?:sauerstoffsättigung|sättigung|spo2)\b\D{0,12}?(\d{2,3})\b`)
)

// ExtractVitals scans text with the per-vital patterns and returns
// normalized, unit-annotated strings in a fixed order (blood pressure,
// pulse, temperature, weight, saturation). Vitals absent from the text are
// omitted.
func ExtractVitals(text string) []string {
	var vitals []string

	if m := bloodPressureRe.FindStringSubmatch(text); m != nil {
		vitals = append(vitals, "Blutdruck "+m[1]+"/"+m[2]+" mmHg")
	}
	if m := pulseRe.FindStringSubmatch(text); m != nil {
		vitals = append(vitals, "Puls "+m[1]+"/min")
	}
	if m := temperatureRe.FindStringSubmatch(text); m != nil {
		vitals = append(vitals, "Temperatur "+decimalComma(m[1])+" °C")
	}
	if m := weightRe.FindStringSubmatch(text); m != nil {
		vitals = append(vitals, "Gewicht "+decimalComma(m[1])+" kg")
	}
	if m := saturationRe.FindStringSubmatch(text); m != nil {
		vitals = append(vitals, "Sauerstoffsättigung "+m[1]+" %")
	}

	return vitals
}

// decimalComma normalizes a decimal point to the German comma.
func decimalComma(v string) string {
	return strings.ReplaceAll(v, ".", ",")
}
