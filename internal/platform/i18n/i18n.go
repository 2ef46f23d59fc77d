// Package i18n holds the patient-facing strings of the verification flow.
// Translations are registered on the default x/text catalog at init, one file
// per language, and looked up through a Printer bound to the kiosk locale.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. Keys double as the format string looked up in the catalog.
const (
	KeyScanNoFace           = "scan.no_face"
	KeyScanFaceUnrecognized = "scan.face_unrecognized"
	KeyScanUnconfirmed      = "scan.recognized_unconfirmed"
	KeyScanNetwork          = "scan.network_error"
	KeyScanStarting         = "scan.starting"

	KeyEscalateAttempts = "escalate.attempts_exhausted"
	KeyEscalateBudget   = "escalate.budget_exhausted"

	KeyCameraPermission  = "camera.permission_denied"
	KeyCameraNotFound    = "camera.not_found"
	KeyCameraBusy        = "camera.busy"
	KeyCameraTimeout     = "camera.timeout"
	KeyCameraUnknown     = "camera.unknown"
	KeyCameraUnavailable = "camera.unavailable"

	KeyIDInputPrompt   = "id_input.prompt"
	KeyIDInputInvalid  = "id_input.invalid"
	KeyIDInputNotFound = "id_input.not_found"
	KeyLookupFailed    = "lookup.failed"
	KeyTokenFailed     = "token.failed"
	KeyVerified        = "verified"
	KeyRegisterPrompt  = "register.prompt"
)

// Messages formats catalog entries for one locale.
type Messages struct {
	printer *message.Printer
}

// New returns Messages for a locale tag such as "th" or "en". Unknown tags
// fall back to Thai, the kiosk default.
func New(locale string) Messages {
	return Messages{printer: message.NewPrinter(Match(locale))}
}

// Match resolves a locale string to a supported language tag.
func Match(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Thai
	}
	matcher := language.NewMatcher([]language.Tag{language.Thai, language.English})
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.Thai
	}
	if idx == 1 {
		return language.English
	}
	return language.Thai
}

// Text formats key with args.
func (m Messages) Text(key string, args ...any) string {
	if m.printer == nil {
		m.printer = message.NewPrinter(language.Thai)
	}
	return m.printer.Sprintf(key, args...)
}
