// Package geocode resolves a report coordinate to its department and
// locality using the Google Maps reverse geocoder.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/guardian-ibera/firewatch/internal/model"
)

var ErrNoResult = errors.New("no place found for coordinate")

type Geocoder struct {
	client *maps.Client
}

// New builds a geocoder authenticated with apiKey. Extra client options,
// such as maps.WithBaseURL, are applied after the key.
func New(apiKey string, opts ...maps.ClientOption) (*Geocoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("maps api key not set")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &Geocoder{client: client}, nil
}

// Locate reverse geocodes c.
func (g *Geocoder) Locate(ctx context.Context, c model.Coordinate) (model.Place, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: c.Lat, Lng: c.Lon},
	}
	results, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return model.Place{}, fmt.Errorf("reverse geocode %.5f,%.5f: %w", c.Lat, c.Lon, err)
	}
	place := placeFromResults(results)
	if place == (model.Place{}) {
		return model.Place{}, ErrNoResult
	}
	return place, nil
}

// placeFromResults takes the first department (second-level administrative
// area) and the first locality found, scanning results from most to least
// specific.
func placeFromResults(results []maps.GeocodingResult) model.Place {
	var p model.Place
	for _, r := range results {
		for _, comp := range r.AddressComponents {
			for _, t := range comp.Types {
				switch t {
				case "administrative_area_level_2":
					if p.Department == "" {
						p.Department = comp.LongName
					}
				case "locality", "sublocality", "neighborhood":
					if p.Locality == "" {
						p.Locality = comp.LongName
					}
				}
			}
		}
	}
	return p
}
