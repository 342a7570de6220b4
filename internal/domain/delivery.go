package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GeoPoint is a WGS-84 coordinate in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" mapstructure:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude" yaml:"longitude"`
}

func (p GeoPoint) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// DeliveryQuote is computed fresh for every captured location and never mutated.
// Fee.Valid is false when the customer is out of range; that is not a zero charge.
type DeliveryQuote struct {
	DistanceKm         float64             `json:"distance_km"`
	IsWithinRange      bool                `json:"is_within_range"`
	Fee                decimal.NullDecimal `json:"fee"`
	EstimatedTimeLabel string              `json:"estimated_time"`
}
