package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/parkwise/internal/domain"
)

// ViolationTransformer implements Transformer using the domain parse and
// enrich functions, with optional geocoding of tickets that carry no
// coordinates.
type ViolationTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a ViolationTransformer. Pass a nil geocoder to keep
// tickets without coordinates as they are.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *ViolationTransformer {
	return &ViolationTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *ViolationTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Ticket, error) {
	ticket, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.Ticket{}, err
	}

	ticket = domain.EnrichTicket(ticket)
	ticket = domain.EnrichWithGeocoding(ctx, ticket, t.geocoder, t.logger)

	return ticket, nil
}
