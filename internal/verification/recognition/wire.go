package recognition

import (
	"encoding/json"
	"math"
	"strings"

	"patientflow/internal/verification/models"
	id "patientflow/pkg/domain"
	pstrings "patientflow/pkg/platform/strings"
)

// wireResult is the service payload. Field names vary between service
// versions, so several aliases are accepted and reconciled in normalize.
type wireResult struct {
	Faces         []wireFace    `json:"faces"`
	OCR           *wireOCR      `json:"ocr"`
	IDCardRegions []wireBox     `json:"id_card_regions"`
	IDCards       []wireBox     `json:"id_cards"`
	Counters      *wireCounters `json:"counters"`
	Stats         *wireCounters `json:"stats"`
}

type wireFace struct {
	BBox        wireBox `json:"bbox"`
	Box         wireBox `json:"box"`
	Label       string  `json:"label"`
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	IdentityRef string  `json:"identity_ref"`
	PatientID   string  `json:"patient_id"`
}

type wireOCR struct {
	RawText       string   `json:"raw_text"`
	Text          string   `json:"text"`
	IDCardNumbers []string `json:"id_card_numbers"`
	IDNumbers     []string `json:"id_numbers"`
	Names         []string `json:"names"`
	CardDetected  bool     `json:"card_detected"`
	// Absent means the engine ran; older services never send it.
	OCRAvailable *bool `json:"ocr_available"`
}

type wireCounters struct {
	FacesFound      *int `json:"faces_found"`
	FacesRecognized *int `json:"faces_recognized"`
	IDCardsFound    *int `json:"id_cards_found"`
}

// wireBox accepts {"x":..,"y":..,"width":..,"height":..}, the short
// {"x","y","w","h"} form, or a bare [x, y, w, h] array.
type wireBox struct {
	models.BoundingBox
	set bool
}

func (b *wireBox) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		if len(arr) < 4 {
			return nil
		}
		b.BoundingBox = models.BoundingBox{
			X: round(arr[0]), Y: round(arr[1]), Width: round(arr[2]), Height: round(arr[3]),
		}
		b.set = true
		return nil
	}

	var obj struct {
		X      float64  `json:"x"`
		Y      float64  `json:"y"`
		Width  *float64 `json:"width"`
		Height *float64 `json:"height"`
		W      float64  `json:"w"`
		H      float64  `json:"h"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	w, h := obj.W, obj.H
	if obj.Width != nil {
		w = *obj.Width
	}
	if obj.Height != nil {
		h = *obj.Height
	}
	b.BoundingBox = models.BoundingBox{X: round(obj.X), Y: round(obj.Y), Width: round(w), Height: round(h)}
	b.set = true
	return nil
}

func (w wireResult) normalize() *models.ScanResult {
	result := &models.ScanResult{
		Faces:         make([]models.DetectedFace, 0, len(w.Faces)),
		IDCardRegions: make([]models.BoundingBox, 0, len(w.IDCardRegions)+len(w.IDCards)),
	}

	for _, f := range w.Faces {
		result.Faces = append(result.Faces, f.normalize())
	}
	for _, regions := range [][]wireBox{w.IDCardRegions, w.IDCards} {
		for _, r := range regions {
			if r.set {
				result.IDCardRegions = append(result.IDCardRegions, r.BoundingBox)
			}
		}
	}
	if w.OCR != nil {
		result.OCR = w.OCR.normalize()
	}

	result.Counters = deriveCounters(result)
	counters := w.Counters
	if counters == nil {
		counters = w.Stats
	}
	if counters != nil {
		if counters.FacesFound != nil {
			result.Counters.FacesFound = *counters.FacesFound
		}
		if counters.FacesRecognized != nil {
			result.Counters.FacesRecognized = *counters.FacesRecognized
		}
		if counters.IDCardsFound != nil {
			result.Counters.IDCardsFound = *counters.IDCardsFound
		}
	}
	return result
}

func (f wireFace) normalize() models.DetectedFace {
	box := f.BBox
	if !box.set {
		box = f.Box
	}
	label := strings.TrimSpace(f.Label)
	if label == "" {
		label = strings.TrimSpace(f.Name)
	}
	if label == "" {
		label = models.UnknownLabel
	}
	ref := f.IdentityRef
	if ref == "" {
		ref = f.PatientID
	}
	return models.DetectedFace{
		Box:         box.BoundingBox,
		Label:       label,
		Confidence:  normalizeConfidence(f.Confidence),
		IdentityRef: id.PatientID(strings.TrimSpace(ref)),
	}
}

func (o wireOCR) normalize() *models.OCRResult {
	raw := o.RawText
	if raw == "" {
		raw = o.Text
	}

	var ids []id.NationalID
	for _, candidates := range [][]string{o.IDCardNumbers, o.IDNumbers} {
		for _, candidate := range candidates {
			if n, err := id.ParseNationalID(candidate); err == nil {
				ids = append(ids, n)
			}
		}
	}
	ids = pstrings.DedupeAndTrim(ids)
	if len(ids) == 0 {
		ids = id.ExtractNationalIDs(raw)
	}

	available := true
	if o.OCRAvailable != nil {
		available = *o.OCRAvailable
	}
	return &models.OCRResult{
		RawText:         raw,
		IDCardNumbers:   ids,
		Names:           pstrings.DedupeAndTrim(o.Names),
		CardDetected:    o.CardDetected,
		EngineAvailable: available,
	}
}

func deriveCounters(r *models.ScanResult) models.ScanCounters {
	c := models.ScanCounters{FacesFound: len(r.Faces), IDCardsFound: len(r.IDCardRegions)}
	for _, f := range r.Faces {
		if f.Recognized() {
			c.FacesRecognized++
		}
	}
	if c.IDCardsFound == 0 && r.OCR != nil && r.OCR.CardDetected {
		c.IDCardsFound = 1
	}
	return c
}

// normalizeConfidence maps percentages onto [0, 1].
func normalizeConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		v /= 100
	}
	return math.Min(v, 1)
}

func round(v float64) int {
	return int(math.Round(v))
}
