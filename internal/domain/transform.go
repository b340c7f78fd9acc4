package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// socrataLayouts are the date formats seen in violation_date, most specific first.
var socrataLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ParseRawEvent deserializes a RawEvent's value into a Ticket.
func ParseRawEvent(raw RawEvent) (Ticket, error) {
	var rec RawViolation
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Ticket{}, fmt.Errorf("parse raw event: %w", err)
	}
	t, err := ParseRawViolation(rec)
	if err != nil {
		return Ticket{}, err
	}
	t.RawPayload = raw.Value
	return t, nil
}

// ParseRawViolation converts a Socrata record into a Ticket. A record without
// a location or a parseable date is rejected.
func ParseRawViolation(rec RawViolation) (Ticket, error) {
	location := normalizeLocation(rec.ViolationLocation)
	if location == "" {
		return Ticket{}, errors.New("parse violation: missing violation_location")
	}

	issued, err := parseViolationDate(rec.ViolationDate)
	if err != nil {
		return Ticket{}, err
	}
	issued = parseHHMM(issued, rec.ViolationTime)

	lat := parseOptionalFloat(rec.Latitude)
	lng := parseOptionalFloat(rec.Longitude)
	if lat == nil || lng == nil {
		lat, lng = nil, nil
	}

	code := strings.TrimSpace(rec.ViolationCode)
	fine := parseFloatOrZero(rec.FineAmount)

	return Ticket{
		ID:          generateID(issued, location, code, fine),
		IssuedAt:    issued,
		Location:    location,
		Code:        code,
		Description: strings.TrimSpace(rec.ViolationDescription),
		Fine:        fine,
		Lat:         lat,
		Lng:         lng,
	}, nil
}

// EnrichTicket derives the weekday and hour buckets, fills a missing
// description from the code, and stamps ProcessedAt.
func EnrichTicket(t Ticket) Ticket {
	t.DayOfWeek = t.IssuedAt.Weekday().String()
	t.Hour = t.IssuedAt.Hour()
	if t.Description == "" {
		t.Description = describeCode(t.Code)
	}
	t.ProcessedAt = clock.Now()
	return t
}

func parseViolationDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("parse violation: missing violation_date")
	}
	for _, layout := range socrataLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse violation: unrecognized violation_date %q", s)
}

// parseHHMM replaces the clock of baseDate with an HHMM string ("1425" → 14:25,
// "930" → 09:30). Invalid or empty input leaves baseDate unchanged.
func parseHHMM(baseDate time.Time, hhmm string) time.Time {
	hhmm = strings.ReplaceAll(strings.TrimSpace(hhmm), ":", "")
	if len(hhmm) < 3 || len(hhmm) > 4 {
		return baseDate
	}
	if len(hhmm) == 3 {
		hhmm = "0" + hhmm
	}

	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return baseDate
	}

	return time.Date(
		baseDate.Year(), baseDate.Month(), baseDate.Day(),
		hour, mins, 0, 0, time.UTC,
	)
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	v := parseOptionalFloat(s)
	if v == nil {
		return 0
	}
	return *v
}

func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !IsFinite(v) {
		return nil
	}
	return &v
}

// normalizeLocation upper-cases and collapses whitespace so "100 n  State st"
// and "100 N STATE ST" aggregate together.
func normalizeLocation(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

func describeCode(code string) string {
	if code == "" {
		return "UNKNOWN VIOLATION"
	}
	return "VIOLATION " + code
}

// generateID produces a deterministic ID from the ticket's key fields so that
// replays and overlapping scrapes insert each ticket once.
func generateID(issued time.Time, location, code string, fine float64) string {
	input := fmt.Sprintf("%s|%s|%s|%g", issued.Format(time.RFC3339), location, code, fine)
	hash := sha256.Sum256([]byte(input))
	return "tkt-" + hex.EncodeToString(hash[:8])
}

// TicketID returns the deterministic ID a raw record will be stored under, or
// an empty string when the record cannot be parsed.
func TicketID(rec RawViolation) string {
	t, err := ParseRawViolation(rec)
	if err != nil {
		return ""
	}
	return t.ID
}
