package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, KeyScanNoFace, "No face detected. Please look at the camera (%d s left)")
	message.SetString(lang, KeyScanFaceUnrecognized, "Face found but not recognized. Hold still or show your ID card (%d s left)")
	message.SetString(lang, KeyScanUnconfirmed, "Recognized %s, confirming identity (%d s left)")
	message.SetString(lang, KeyScanNetwork, "Cannot reach the recognition service, retrying (%d s left)")
	message.SetString(lang, KeyScanStarting, "Starting camera, please look at the screen")

	message.SetString(lang, KeyEscalateAttempts, "Could not verify automatically after %d attempts. Please enter your national ID")
	message.SetString(lang, KeyEscalateBudget, "Could not verify automatically in time. Please enter your national ID")

	message.SetString(lang, KeyCameraPermission, "Camera access was denied. Please allow camera access and try again")
	message.SetString(lang, KeyCameraNotFound, "No camera was found on this kiosk")
	message.SetString(lang, KeyCameraBusy, "The camera is in use by another application")
	message.SetString(lang, KeyCameraTimeout, "The camera did not start in time")
	message.SetString(lang, KeyCameraUnknown, "The camera could not be started")
	message.SetString(lang, KeyCameraUnavailable, "The camera is not available")

	message.SetString(lang, KeyIDInputPrompt, "Please enter your 13-digit national ID")
	message.SetString(lang, KeyIDInputInvalid, "National ID must be 13 digits")
	message.SetString(lang, KeyIDInputNotFound, "No patient record found, please register")
	message.SetString(lang, KeyLookupFailed, "Cannot reach the patient directory, please try again")
	message.SetString(lang, KeyTokenFailed, "Could not issue a queue ticket, please try again")
	message.SetString(lang, KeyVerified, "Welcome, %s")
	message.SetString(lang, KeyRegisterPrompt, "Please register as a new patient")
}
