package domain

import (
	"context"
	"log/slog"
)

// Geo sources recorded on a ticket.
const (
	GeoSourceOriginal = "original"
	GeoSourceGeocoded = "geocoded"
	GeoSourceFailed   = "failed"
)

// EnrichWithGeocoding fills missing coordinates by geocoding the ticket's
// violation location. Tickets that already carry coordinates are left alone.
// A nil geocoder or a failed lookup leaves the ticket without coordinates.
func EnrichWithGeocoding(ctx context.Context, t Ticket, geocoder Geocoder, logger *slog.Logger) Ticket {
	if t.Lat != nil && t.Lng != nil {
		t.GeoSource = GeoSourceOriginal
		return t
	}
	if geocoder == nil {
		return t
	}

	result, err := geocoder.Geocode(ctx, t.Location)
	if err != nil {
		logger.Warn("geocoding failed",
			"ticket_id", t.ID,
			"location", t.Location,
			"error", err,
		)
		t.GeoSource = GeoSourceFailed
		return t
	}
	if !IsFinite(result.Lat) || !IsFinite(result.Lng) {
		t.GeoSource = GeoSourceFailed
		return t
	}

	lat, lng := result.Lat, result.Lng
	t.Lat = &lat
	t.Lng = &lng
	t.GeoSource = GeoSourceGeocoded
	return t
}
