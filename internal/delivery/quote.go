package delivery

import (
	"math"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

const earthRadiusKm = 6371.0

// Estimated delivery time labels by distance band.
const (
	LabelExpress      = "30-45 minutes"
	LabelNearby       = "1-2 hours"
	LabelRegional     = "2-4 hours"
	LabelSameDay      = "Same day"
	LabelNotAvailable = "Not available"
)

var (
	midRangeSurcharge = decimal.NewFromInt(25)
	farRangeSurcharge = decimal.NewFromInt(50)
)

// Config describes the store's coverage. Changing it never touches the tier logic.
type Config struct {
	Origin                domain.GeoPoint
	RadiusKm              float64
	BaseFee               decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

// Quote computes distance, range, fee and ETA for a customer location. It is pure:
// identical inputs always produce identical output.
func Quote(cfg Config, customer domain.GeoPoint, orderAmount decimal.Decimal) domain.DeliveryQuote {
	distance := Distance(cfg.Origin, customer)
	inRange := distance <= cfg.RadiusKm

	return domain.DeliveryQuote{
		DistanceKm:         distance,
		IsWithinRange:      inRange,
		Fee:                fee(cfg, distance, inRange, orderAmount),
		EstimatedTimeLabel: estimatedTime(distance, cfg.RadiusKm),
	}
}

func fee(cfg Config, distance float64, inRange bool, orderAmount decimal.Decimal) decimal.NullDecimal {
	switch {
	case !inRange:
		return decimal.NullDecimal{}
	case orderAmount.GreaterThanOrEqual(cfg.FreeDeliveryThreshold):
		return decimal.NewNullDecimal(decimal.Zero)
	case distance <= 50:
		return decimal.NewNullDecimal(cfg.BaseFee)
	case distance <= 150:
		return decimal.NewNullDecimal(cfg.BaseFee.Add(midRangeSurcharge))
	default:
		return decimal.NewNullDecimal(cfg.BaseFee.Add(farRangeSurcharge))
	}
}

func estimatedTime(distance, radiusKm float64) string {
	switch {
	case distance <= 25:
		return LabelExpress
	case distance <= 75:
		return LabelNearby
	case distance <= 150:
		return LabelRegional
	case distance <= radiusKm:
		return LabelSameDay
	default:
		return LabelNotAvailable
	}
}

// Distance is the great-circle distance in km between a and b, rounded to 2 decimals.
func Distance(a, b domain.GeoPoint) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(earthRadiusKm*c*100) / 100
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
