package domain

import (
	"strings"

	dErrors "patientflow/pkg/domain-errors"
)

// NationalIDLength is the number of digits on a national ID card.
const NationalIDLength = 13

// NationalID is a 13-digit citizen identification number. Only the digit
// count is enforced: directory records exist whose check digit does not
// validate, and rejecting them would lock those patients out.
type NationalID string

// ParseNationalID strips common separators and requires exactly 13 digits.
func ParseNationalID(s string) (NationalID, error) {
	digits := stripSeparators(s)
	if digits == "" {
		return "", dErrors.New(dErrors.CodeValidation, "national id is required")
	}
	if len(digits) != NationalIDLength || !allDigits(digits) {
		return "", dErrors.New(dErrors.CodeValidation, "national id must be 13 digits")
	}
	return NationalID(digits), nil
}

func (n NationalID) String() string {
	return string(n)
}

// Masked hides all but the last four digits for logging.
func (n NationalID) Masked() string {
	if len(n) <= 4 {
		return string(n)
	}
	return strings.Repeat("*", len(n)-4) + string(n[len(n)-4:])
}

// ExtractNationalIDs finds every 13-digit run in OCR text. Card layouts print
// the number grouped as "1 2345 67890 12 3", so spaces and dashes between
// digits are treated as part of the run. Results are de-duplicated in order.
func ExtractNationalIDs(text string) []NationalID {
	var (
		found []NationalID
		seen  = map[NationalID]bool{}
		run   strings.Builder
	)
	flush := func() {
		if run.Len() == NationalIDLength {
			id := NationalID(run.String())
			if !seen[id] {
				seen[id] = true
				found = append(found, id)
			}
		}
		run.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			run.WriteRune(r)
		case (r == ' ' || r == '-') && run.Len() > 0 && i+1 < len(runes) && isDigit(runes[i+1]):
			// separator inside a grouped number
		default:
			flush()
		}
	}
	flush()
	return found
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func allDigits(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
