package domain

import "context"

// Geocoder resolves a street address or violation location to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (GeocodeResult, error)
}
