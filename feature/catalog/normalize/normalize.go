package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"service-catalog/core/utils"
	"service-catalog/feature/catalog/models"
)

// ToCanonical resolves a raw record of any shape into the canonical record.
//
// Each derived field takes the first non-blank value of: the flat field, the
// nested details field, the default (DefaultOnRequest for capture, treatment
// and travel; empty for deliverables and add-ons). The price is coerced to a
// non-negative decimal rounded to cents; invalid prices become zero. The
// detail blob is always regenerated from the resolved flat fields.
func ToCanonical(raw models.RawRecord) models.ServiceRecord {
	var (
		flat   models.FlatShape
		nested models.Details
	)

	switch r := raw.(type) {
	case models.FlatShape:
		flat = r
	case models.NestedShape:
		flat = models.FlatShape{Name: r.Name, Description: r.Description, BasePrice: r.BasePrice}
		nested = r.Details
	case models.MixedShape:
		flat = r.Flat
		nested = r.Details
	}

	rec := models.ServiceRecord{
		Name:              strings.TrimSpace(flat.Name),
		Description:       strings.TrimSpace(flat.Description),
		BasePrice:         utils.ToNonNegativeDecimal(flat.BasePrice).Round(2),
		CaptureDuration:   pick(flat.CaptureDuration, nested.Capture, models.DefaultOnRequest),
		TreatmentDuration: pick(flat.TreatmentDuration, nested.Treatment, models.DefaultOnRequest),
		Deliverables:      pick(flat.Deliverables, nested.Deliverables, ""),
		PossibleAddOns:    pick(flat.PossibleAddOns, nested.AddOns, ""),
		TravelFee:         pick(flat.TravelFee, nested.Travel, models.DefaultOnRequest),
	}
	rec.DetailBlob = EncodeDetails(DetailsOf(rec))
	return rec
}

// ToLegacyFlat returns the consumer view of rec. The nested details come from
// the stored blob, with blank or missing keys filled from the flat fields; a
// malformed blob falls back to the flat fields entirely.
func ToLegacyFlat(rec models.ServiceRecord) models.LegacyRecord {
	details := DetailsOf(rec)
	if parsed, err := models.ParseDetailBlob(rec.DetailBlob); err == nil {
		details = models.Details{
			Capture:      pick(parsed.Capture, details.Capture, ""),
			Treatment:    pick(parsed.Treatment, details.Treatment, ""),
			Deliverables: pick(parsed.Deliverables, details.Deliverables, ""),
			AddOns:       pick(parsed.AddOns, details.AddOns, ""),
			Travel:       pick(parsed.Travel, details.Travel, ""),
		}
	}

	legacy := models.LegacyRecord{
		Name:              rec.Name,
		Description:       rec.Description,
		BasePrice:         rec.BasePrice,
		CaptureDuration:   rec.CaptureDuration,
		TreatmentDuration: rec.TreatmentDuration,
		Deliverables:      rec.Deliverables,
		PossibleAddOns:    rec.PossibleAddOns,
		TravelFee:         rec.TravelFee,
		Details:           details,
	}
	if rec.ID != 0 {
		legacy.ID = strconv.FormatUint(uint64(rec.ID), 10)
	}
	return legacy
}

// DetailsOf builds the nested details from the flat fields of rec.
func DetailsOf(rec models.ServiceRecord) models.Details {
	return models.Details{
		Capture:      rec.CaptureDuration,
		Treatment:    rec.TreatmentDuration,
		Deliverables: rec.Deliverables,
		AddOns:       rec.PossibleAddOns,
		Travel:       rec.TravelFee,
	}
}

// EncodeDetails serializes d with a fixed key order.
func EncodeDetails(d models.Details) string {
	b, err := json.Marshal(d)
	if err != nil {
		// Details holds only strings; Marshal cannot fail.
		return "{}"
	}
	return string(b)
}

func pick(primary, fallback, def string) string {
	if v := strings.TrimSpace(primary); v != "" {
		return v
	}
	if v := strings.TrimSpace(fallback); v != "" {
		return v
	}
	return def
}
