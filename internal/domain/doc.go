// Package domain models parking-violation enforcement data for the ParkWise
// risk engine and its analytics backend.
//
// # Data Source
//
// Tickets originate from the City of Chicago open-data portal (Socrata dataset
// sbc2-2car). The scraper pages through the dataset and publishes each record
// as flat JSON to the raw violations topic. The analytics service consumes that
// topic, parses each record into a [Ticket], and aggregates tickets per
// violation location for the engine.
//
// # Socrata Conventions
//
// Every field arrives as a JSON string, including numeric ones:
//
//	{"violation_date": "2024-06-03T14:25:00.000", "violation_time": "1425",
//	 "violation_location": "100 N STATE ST", "violation_code": "0976160B",
//	 "fine_amount": "75", "latitude": "41.8832", "longitude": "-87.6278"}
//
// Date format:
//
//	Floating timestamps without a zone, "2006-01-02T15:04:05.000".
//	Some exports carry only the date; violation_time then supplies the hour in
//	HHMM notation ("930" is zero-padded to "0930").
//
// Coordinates:
//
//	Latitude and longitude are optional. Records without them are located by
//	the deterministic street geocoder in the analytics package.
//
// # Filters
//
// Queries are windowed by weekday and hour. "all" disables either filter.
// Weekdays use English names ("Monday"), hours are 0-23 in local city time.
//
// # Risk Tiers
//
// Nearby locations are ranked by a min-max percentile of their ticket counts:
//
//	≤ 0.33 Low | ≤ 0.66 Medium | > 0.66 High
//
// A set where every location has the same count is uniformly Low.
//
// # ID Generation
//
// Ticket IDs are deterministic SHA-256 hashes of date|time|location|code|fine.
// Re-scraping the same window therefore yields the same IDs, and the store
// inserts with ON CONFLICT DO NOTHING. See [generateID].
package domain
