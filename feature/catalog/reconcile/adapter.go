package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"

	"service-catalog/core/reconcile"
	"service-catalog/feature/catalog/models"
	"service-catalog/feature/catalog/normalize"

	"github.com/google/go-cmp/cmp"
)

var errNilRecord = errors.New("source record is nil")

// ServiceAdapter implements reconcile.Adapter for service records.
type ServiceAdapter struct{}

var _ reconcile.Adapter[models.RawRecord, models.ServiceRecord] = ServiceAdapter{}

// NewAdapter creates a new service adapter.
func NewAdapter() ServiceAdapter {
	return ServiceAdapter{}
}

// NewSpec returns the reconcile spec for service records.
func NewSpec() *reconcile.Spec[models.RawRecord, models.ServiceRecord] {
	return &reconcile.Spec[models.RawRecord, models.ServiceRecord]{Adapter: NewAdapter()}
}

// Name returns the unique name of this adapter.
func (ServiceAdapter) Name() string {
	return "services"
}

// Normalize resolves a raw definition into the canonical record.
func (ServiceAdapter) Normalize(raw models.RawRecord) (models.ServiceRecord, error) {
	if raw == nil {
		return models.ServiceRecord{}, errNilRecord
	}
	return normalize.ToCanonical(raw), nil
}

// Key returns the record name, the only identity shared across stores.
func (ServiceAdapter) Key(rec models.ServiceRecord) string {
	return rec.Name
}

// Compare lists the fields where existing differs from incoming.
// Store-local fields (ID, timestamps) are ignored. The detail blob is
// compared structurally so key order and whitespace do not count.
func (ServiceAdapter) Compare(existing, incoming models.ServiceRecord) []string {
	var mismatches []string

	text := func(label, stored, want string) {
		if stored != want {
			mismatches = append(mismatches, fmt.Sprintf("%s: stored=%q incoming=%q", label, stored, want))
		}
	}

	text("description", existing.Description, incoming.Description)
	if !existing.BasePrice.Equal(incoming.BasePrice) {
		mismatches = append(mismatches, fmt.Sprintf("base_price: stored=%s incoming=%s", existing.BasePrice, incoming.BasePrice))
	}
	text("capture_duration", existing.CaptureDuration, incoming.CaptureDuration)
	text("treatment_duration", existing.TreatmentDuration, incoming.TreatmentDuration)
	text("deliverables", existing.Deliverables, incoming.Deliverables)
	text("possible_add_ons", existing.PossibleAddOns, incoming.PossibleAddOns)
	text("travel_fee", existing.TravelFee, incoming.TravelFee)

	if diff := blobDiff(existing.DetailBlob, incoming.DetailBlob); diff != "" {
		mismatches = append(mismatches, "details: "+diff)
	}

	return mismatches
}

func blobDiff(stored, incoming string) string {
	var a, b map[string]any
	if err := json.Unmarshal([]byte(stored), &a); err != nil || a == nil {
		return "stored blob is malformed"
	}
	if err := json.Unmarshal([]byte(incoming), &b); err != nil || b == nil {
		return "incoming blob is malformed"
	}
	if cmp.Equal(a, b) {
		return ""
	}
	return "blob differs from flat fields"
}
