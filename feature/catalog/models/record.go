package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultOnRequest is the placeholder for duration and travel fields without a value.
const DefaultOnRequest = "Sob consulta"

// ServiceRecord is the canonical catalog entry as stored in the database.
// Name is the only identity shared across stores; ID is store-local.
type ServiceRecord struct {
	ID                uint            `gorm:"column:id;primaryKey" json:"id"`
	Name              string          `gorm:"column:name;size:191;not null;uniqueIndex" json:"name" validate:"required,max=191"`
	Description       string          `gorm:"column:description;type:text" json:"description"`
	BasePrice         decimal.Decimal `gorm:"column:base_price;type:decimal(12,2);not null;default:0" json:"basePrice" validate:"gte=0"`
	CaptureDuration   string          `gorm:"column:capture_duration;size:191" json:"captureDuration" validate:"max=191"`
	TreatmentDuration string          `gorm:"column:treatment_duration;size:191" json:"treatmentDuration" validate:"max=191"`
	Deliverables      string          `gorm:"column:deliverables;type:text" json:"deliverables"`
	PossibleAddOns    string          `gorm:"column:possible_add_ons;type:text" json:"possibleAddOns"`
	TravelFee         string          `gorm:"column:travel_fee;size:191" json:"travelFee" validate:"max=191"`
	DetailBlob        string          `gorm:"column:details;type:text" json:"detailBlob"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName overrides the table name.
func (ServiceRecord) TableName() string {
	return "services"
}

// Columns lists the columns the repository relies on.
var Columns = []string{
	"id", "name", "description", "base_price", "capture_duration",
	"treatment_duration", "deliverables", "possible_add_ons", "travel_fee", "details",
}

// Details is the nested representation of the duration and deliverable fields.
// Field order is the serialization order of the detail blob.
type Details struct {
	Capture      string `json:"capture" yaml:"capture"`
	Treatment    string `json:"treatment" yaml:"treatment"`
	Deliverables string `json:"deliverables" yaml:"deliverables"`
	AddOns       string `json:"addOns" yaml:"addOns"`
	Travel       string `json:"travel" yaml:"travel"`
}

// LegacyRecord is the consumer view: flat fields plus the nested details
// object older frontends still read.
type LegacyRecord struct {
	ID                string          `json:"id,omitempty"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	BasePrice         decimal.Decimal `json:"basePrice"`
	CaptureDuration   string          `json:"captureDuration"`
	TreatmentDuration string          `json:"treatmentDuration"`
	Deliverables      string          `json:"deliverables"`
	PossibleAddOns    string          `json:"possibleAddOns"`
	TravelFee         string          `json:"travelFee"`
	Details           Details         `json:"details"`
}

// Raw returns the record as input for normalization.
func (r LegacyRecord) Raw() RawRecord {
	return MixedShape{
		Flat: FlatShape{
			Name:              r.Name,
			Description:       r.Description,
			BasePrice:         r.BasePrice,
			CaptureDuration:   r.CaptureDuration,
			TreatmentDuration: r.TreatmentDuration,
			Deliverables:      r.Deliverables,
			PossibleAddOns:    r.PossibleAddOns,
			TravelFee:         r.TravelFee,
		},
		Details: r.Details,
	}
}
