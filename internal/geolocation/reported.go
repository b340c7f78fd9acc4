package geolocation

import (
	"context"

	"github.com/couchcryptid/parkwise/internal/domain"
)

// Report is a position result delivered by a client alongside a request,
// typically the browser's answer to getCurrentPosition.
type Report struct {
	Coords *domain.LatLng
	Err    error
}

type reportKey struct{}

// WithReport attaches a client report to ctx.
func WithReport(ctx context.Context, r Report) context.Context {
	return context.WithValue(ctx, reportKey{}, r)
}

// ReportFromContext returns the report attached to ctx, if any.
func ReportFromContext(ctx context.Context) (Report, bool) {
	r, ok := ctx.Value(reportKey{}).(Report)
	return r, ok
}

// Reported is a Locator that answers from the Report attached to the request
// context. Without a report the capability is unavailable.
type Reported struct{}

// CurrentPosition implements Locator.
func (Reported) CurrentPosition(ctx context.Context, _ Options) (Position, error) {
	r, ok := ReportFromContext(ctx)
	if !ok {
		return Position{}, ErrUnavailable
	}
	if r.Err != nil {
		return Position{}, r.Err
	}
	if r.Coords == nil {
		return Position{}, ErrPositionUnavailable
	}
	return Position{Coords: *r.Coords}, nil
}
