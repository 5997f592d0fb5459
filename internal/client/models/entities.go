package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entity is implemented by every cached domain object.
type Entity interface {
	Collection() Collection
	RecordKey() string
	RecordVersion() int64
}

// ToRecord converts a typed entity into its storage envelope.
func ToRecord(e Entity) (Record, error) {
	if e.RecordKey() == "" {
		return Record{}, ErrEmptyKey
	}
	b, err := json.Marshal(e)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", e.Collection(), err)
	}
	fields, err := ParseBody(b)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Key: e.RecordKey(), Version: e.RecordVersion(), Fields: fields}
	if u, ok := e.(interface{ LastUpdated() time.Time }); ok {
		rec.UpdatedAt = u.LastUpdated().UTC()
	}
	return rec, nil
}

// FromRecord decodes a storage envelope into a typed entity.
func FromRecord[T any](r Record) (*T, error) {
	var v T
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GuardianProfile holds the caregiver's editable attributes.
type GuardianProfile struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// Notification is a reminder or announcement addressed to a guardian.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// Guardian is the root identity cached for a caregiver.
type Guardian struct {
	ID            string          `json:"id"`
	Version       int64           `json:"version"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Profile       GuardianProfile `json:"profile"`
	Notifications []Notification  `json:"notifications"`
	Conversations []string        `json:"conversations"`
}

func (g Guardian) Collection() Collection { return CollectionGuardians }
func (g Guardian) RecordKey() string      { return g.ID }
func (g Guardian) RecordVersion() int64   { return g.Version }
func (g Guardian) LastUpdated() time.Time { return g.UpdatedAt }

// PatientDetails are the demographic attributes of a child patient.
type PatientDetails struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Sex         string `json:"sex"`
	DateOfBirth string `json:"dateOfBirth"`
	Barangay    string `json:"barangay,omitempty"`
}

// Visit is a single clinic visit.
type Visit struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
	Notes  string    `json:"notes,omitempty"`
}

// Vitals are the latest measured vital signs.
type Vitals struct {
	WeightKg     float64   `json:"weightKg"`
	HeightCm     float64   `json:"heightCm"`
	TemperatureC float64   `json:"temperatureC,omitempty"`
	MeasuredAt   time.Time `json:"measuredAt"`
}

// DoseSchedule is a planned vaccine dose.
type DoseSchedule struct {
	VaccineCode string `json:"vaccineCode"`
	DoseNumber  int    `json:"doseNumber"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status"`
}

// BirthHistory records perinatal information.
type BirthHistory struct {
	BirthWeightKg  float64 `json:"birthWeightKg"`
	GestationWeeks int     `json:"gestationWeeks"`
	DeliveryType   string  `json:"deliveryType"`
	PlaceOfBirth   string  `json:"placeOfBirth,omitempty"`
}

// Immunization is an administered vaccine dose.
type Immunization struct {
	VaccineCode    string    `json:"vaccineCode"`
	DoseNumber     int       `json:"doseNumber"`
	AdministeredAt time.Time `json:"administeredAt"`
	Lot            string    `json:"lot,omitempty"`
	Facility       string    `json:"facility,omitempty"`
}

// Patient is a child whose records are tracked. GuardianID is a lookup
// reference; the guardian may not be cached yet.
type Patient struct {
	ID            string         `json:"id"`
	Version       int64          `json:"version"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	GuardianID    string         `json:"guardianId"`
	Details       PatientDetails `json:"details"`
	Visits        []Visit        `json:"visits"`
	Vitals        Vitals         `json:"vitals"`
	Schedules     []DoseSchedule `json:"schedules"`
	BirthHistory  BirthHistory   `json:"birthHistory"`
	Immunizations []Immunization `json:"immunizations"`
}

func (p Patient) Collection() Collection { return CollectionPatients }
func (p Patient) RecordKey() string      { return p.ID }
func (p Patient) RecordVersion() int64   { return p.Version }
func (p Patient) LastUpdated() time.Time { return p.UpdatedAt }

// FAQ is static reference data, read-only on the client.
type FAQ struct {
	ID       string   `json:"faq_id"`
	Version  int64    `json:"version"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags"`
}

func (f FAQ) Collection() Collection { return CollectionFAQs }
func (f FAQ) RecordKey() string      { return f.ID }
func (f FAQ) RecordVersion() int64   { return f.Version }
