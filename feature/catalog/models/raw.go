package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"service-catalog/core/utils"
)

// RawRecord is a service record in one of the input shapes accepted by the
// normalizer. It is implemented by FlatShape, NestedShape and MixedShape.
type RawRecord interface {
	// RecordName returns the identity of the record as given.
	RecordName() string
	isRawRecord()
}

// FlatShape carries every field at the top level.
// BasePrice may be a string, a number or a decimal.
type FlatShape struct {
	Name              string
	Description       string
	BasePrice         any
	CaptureDuration   string
	TreatmentDuration string
	Deliverables      string
	PossibleAddOns    string
	TravelFee         string
}

// NestedShape carries the duration and deliverable fields inside Details.
type NestedShape struct {
	Name        string
	Description string
	BasePrice   any
	Details     Details
}

// MixedShape carries both; flat values take precedence.
type MixedShape struct {
	Flat    FlatShape
	Details Details
}

func (f FlatShape) RecordName() string   { return f.Name }
func (n NestedShape) RecordName() string { return n.Name }
func (m MixedShape) RecordName() string  { return m.Flat.Name }

func (FlatShape) isRawRecord()   {}
func (NestedShape) isRawRecord() {}
func (MixedShape) isRawRecord()  {}

// Accepted spellings for each input key.
var (
	flatKeys = map[string][]string{
		"name":              {"name"},
		"description":       {"description"},
		"basePrice":         {"basePrice", "base_price", "price"},
		"captureDuration":   {"captureDuration", "capture_duration"},
		"treatmentDuration": {"treatmentDuration", "treatment_duration"},
		"deliverables":      {"deliverables"},
		"possibleAddOns":    {"possibleAddOns", "possible_add_ons", "addOns"},
		"travelFee":         {"travelFee", "travel_fee"},
	}
	detailKeys = []string{"details", "detailBlob", "detail_blob"}
)

// DecodeRaw builds the RawRecord variant matching the keys present in m.
// A "details" value may be an object or a serialized JSON string; an
// unparsable string is treated as absent.
func DecodeRaw(m map[string]any) (RawRecord, error) {
	if m == nil {
		return nil, fmt.Errorf("empty record")
	}

	details, hasDetails := decodeDetails(m)

	flat := FlatShape{
		Name:              lookupString(m, "name"),
		Description:       lookupString(m, "description"),
		BasePrice:         lookup(m, "basePrice"),
		CaptureDuration:   lookupString(m, "captureDuration"),
		TreatmentDuration: lookupString(m, "treatmentDuration"),
		Deliverables:      lookupString(m, "deliverables"),
		PossibleAddOns:    lookupString(m, "possibleAddOns"),
		TravelFee:         lookupString(m, "travelFee"),
	}
	hasFlat := flat.CaptureDuration != "" || flat.TreatmentDuration != "" ||
		flat.Deliverables != "" || flat.PossibleAddOns != "" || flat.TravelFee != ""

	switch {
	case hasDetails && hasFlat:
		return MixedShape{Flat: flat, Details: details}, nil
	case hasDetails:
		return NestedShape{
			Name:        flat.Name,
			Description: flat.Description,
			BasePrice:   flat.BasePrice,
			Details:     details,
		}, nil
	default:
		return flat, nil
	}
}

// DecodeRawJSON is DecodeRaw over a JSON object.
func DecodeRawJSON(data []byte) (RawRecord, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return DecodeRaw(m)
}

func lookup(m map[string]any, field string) any {
	for _, key := range flatKeys[field] {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func lookupString(m map[string]any, field string) string {
	return utils.ToString(lookup(m, field))
}

func decodeDetails(m map[string]any) (Details, bool) {
	for _, key := range detailKeys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch d := v.(type) {
		case map[string]any:
			return detailsFromMap(d), true
		case string:
			parsed, err := ParseDetailBlob(d)
			if err == nil {
				return parsed, true
			}
		case Details:
			return d, true
		}
	}
	return Details{}, false
}

func detailsFromMap(m map[string]any) Details {
	return Details{
		Capture:      utils.ToString(m["capture"]),
		Treatment:    utils.ToString(m["treatment"]),
		Deliverables: utils.ToString(m["deliverables"]),
		AddOns:       utils.ToString(m["addOns"]),
		Travel:       utils.ToString(m["travel"]),
	}
}

// ParseDetailBlob decodes a serialized detail blob.
func ParseDetailBlob(blob string) (Details, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return Details{}, fmt.Errorf("malformed detail blob: %w", err)
	}
	if m == nil {
		return Details{}, fmt.Errorf("malformed detail blob: not an object")
	}
	return detailsFromMap(m), nil
}
