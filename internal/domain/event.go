package domain

import (
	"context"
	"time"
)

// RawViolation is one record as published by the Socrata open-data API.
// Every field is a string in the source JSON.
type RawViolation struct {
	ViolationDate        string `json:"violation_date"`
	ViolationTime        string `json:"violation_time,omitempty"`
	ViolationLocation    string `json:"violation_location"`
	ViolationCode        string `json:"violation_code"`
	ViolationDescription string `json:"violation_description,omitempty"`
	FineAmount           string `json:"fine_amount"`
	Latitude             string `json:"latitude,omitempty"`
	Longitude            string `json:"longitude,omitempty"`
}

// RawEvent represents an unprocessed message from the raw violations topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Ticket is a parsed parking violation ready for storage.
type Ticket struct {
	ID          string    `json:"id"`
	IssuedAt    time.Time `json:"issued_at"`
	DayOfWeek   string    `json:"day_of_week"`
	Hour        int       `json:"hour"`
	Location    string    `json:"location"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Fine        float64   `json:"fine"`

	// Coordinates are nil when the source record had none.
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	GeoSource string `json:"geo_source,omitempty"` // "original", "geocoded", "failed"

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}
