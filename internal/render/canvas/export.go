package canvas

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/parkwise/internal/render"
)

// Layer names used in GeoJSON feature properties.
const (
	LayerHeat     = "heat"
	LayerHotspot  = "hotspot"
	LayerNearest  = "nearest"
	LayerLocation = "location"
)

// GeoJSON exports the map layers of s as one feature collection. Every
// feature carries a "layer" property.
func GeoJSON(s Snapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, p := range s.Heat {
		f := geojson.NewFeature(orb.Point{p.Lng, p.Lat})
		f.Properties["layer"] = LayerHeat
		f.Properties["weight"] = p.Weight
		fc.Append(f)
	}
	for _, m := range s.Hotspots {
		fc.Append(markerFeature(LayerHotspot, m))
	}
	for _, m := range s.NearestMarkers {
		fc.Append(markerFeature(LayerNearest, m))
	}
	if s.LocationMarker != nil {
		fc.Append(markerFeature(LayerLocation, *s.LocationMarker))
	}
	return fc
}

func markerFeature(layer string, m render.Marker) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{m.Position.Lng, m.Position.Lat})
	f.Properties["layer"] = layer
	f.Properties["color"] = m.Color
	f.Properties["radius"] = m.Radius
	f.Properties["popup"] = m.Popup
	if m.Location != "" {
		f.Properties["location"] = m.Location
	}
	return f
}

// WriteHTML renders s as a chart page: the heat layer and markers as a
// scatter plot and the dashboard peak hours as a bar chart.
func WriteHTML(w io.Writer, s Snapshot) error {
	page := components.NewPage()
	page.AddCharts(heatScatter(s))
	if s.Dashboard != nil {
		page.AddCharts(peakHoursBar(s.Dashboard.PeakHours))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

func heatScatter(s Snapshot) *charts.Scatter {
	heat := make([]opts.ScatterData, 0, len(s.Heat))
	for _, p := range s.Heat {
		heat = append(heat, opts.ScatterData{Value: []interface{}{p.Lng, p.Lat, p.Weight}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "ParkWise", Theme: "dark", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Violation heatmap",
			Subtitle: fmt.Sprintf("points=%d hotspots=%d", len(s.Heat), s.HotspotCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", NameLocation: "middle", NameGap: 25, Min: "dataMin", Max: "dataMax"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", NameLocation: "middle", NameGap: 40, Min: "dataMin", Max: "dataMax"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#00ff00", "#ffff00", "#ff0000"}},
		}),
	)
	scatter.AddSeries("heat", heat, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	if len(s.Hotspots) > 0 {
		scatter.AddSeries("hotspots", markerData(s.Hotspots),
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 16}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff0000"}))
	}
	if len(s.NearestMarkers) > 0 {
		scatter.AddSeries("nearest", markerData(s.NearestMarkers),
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffffff"}))
	}
	if s.LocationMarker != nil {
		scatter.AddSeries("search center", markerData([]render.Marker{*s.LocationMarker}),
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 20}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.LocationMarker.Color}))
	}
	return scatter
}

func markerData(markers []render.Marker) []opts.ScatterData {
	out := make([]opts.ScatterData, 0, len(markers))
	for _, m := range markers {
		out = append(out, opts.ScatterData{
			Name:  m.Popup,
			Value: []interface{}{m.Position.Lng, m.Position.Lat},
		})
	}
	return out
}

func peakHoursBar(series render.BarSeries) *charts.Bar {
	data := make([]opts.BarData, 0, len(series.Values))
	for _, v := range series.Values {
		data = append(data, opts.BarData{Value: v})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Peak hours"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(series.Labels).
		AddSeries(series.Name, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#4fbdba"}))
	return bar
}
