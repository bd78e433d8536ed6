package domain

import (
	"math"

	kwikpik "github.com/kwikpik/kwikpik-go"
)

// Fare is the price structure of one vehicle type.
type Fare struct {
	Base  float64
	PerKM float64
}

// Fares maps every accepted vehicle type to its fare.
var Fares = map[kwikpik.VehicleType]Fare{
	kwikpik.VehicleBicycle:    {Base: 500, PerKM: 100},
	kwikpik.VehicleMotorcycle: {Base: 700, PerKM: 150},
	kwikpik.VehicleCar:        {Base: 1500, PerKM: 250},
	kwikpik.VehicleVan:        {Base: 2500, PerKM: 350},
	kwikpik.VehicleBus:        {Base: 3000, PerKM: 400},
	kwikpik.VehicleTruck:      {Base: 5000, PerKM: 600},
}

// Quote prices a trip from one point to another. It returns false for an
// unknown vehicle type.
func Quote(vehicle kwikpik.VehicleType, from, to kwikpik.Coordinates) (float64, bool) {
	fare, ok := Fares[vehicle]
	if !ok {
		return 0, false
	}
	km := HaversineKM(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	return math.Round((fare.Base+fare.PerKM*km)*100) / 100, true
}

// HaversineKM is the great-circle distance between two points in km.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0 // Earth radius in km
	a1 := lat1 * math.Pi / 180
	a2 := lat2 * math.Pi / 180
	da := (lat2 - lat1) * math.Pi / 180
	db := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(da/2)*math.Sin(da/2) +
		math.Cos(a1)*math.Cos(a2)*math.Sin(db/2)*math.Sin(db/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
