package discovery

import (
	"hash/fnv"
	"math"

	"github.com/Leganyst/openslots/internal/catalog"
)

// DistanceFunc оценивает расстояние от покупателя до провайдера в милях.
// При равной цене и рейтинге ближний идёт раньше.
type DistanceFunc func(p catalog.Provider, zipCode string) float64

// HashDistance — детерминированная заглушка: значение в [0, 10) миль из id
// провайдера и почтового индекса покупателя.
func HashDistance(p catalog.Provider, zipCode string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(p.ID))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(zipCode))
	return float64(h.Sum32()%1000) / 100
}

const earthRadiusMiles = 3958.8

// GeoDistance считает расстояние по большому кругу от заданной точки.
// Для провайдеров без координат используется HashDistance.
func GeoDistance(originLat, originLon float64) DistanceFunc {
	return func(p catalog.Provider, zipCode string) float64 {
		if p.Latitude == nil || p.Longitude == nil {
			return HashDistance(p, zipCode)
		}
		return haversine(originLat, originLon, *p.Latitude, *p.Longitude)
	}
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}
