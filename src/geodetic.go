package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	WGS-84 to GCJ-02 datum conversion.
 *
 * Description:	Chinese mapping regulations require published
 *		coordinates inside the mainland to use the GCJ-02
 *		datum, which offsets WGS-84 by a non-linear warp of up
 *		to roughly 500 m. Points outside the bounding
 *		rectangle pass through unchanged, as do NaN and
 *		infinite inputs.
 *
 *---------------------------------------------------------------*/

import "math"

const (
	semiMajorAxis     = 6378245.0
	eccentricitySqr   = 0.00669342162296594323
	baiduCircleFactor = math.Pi * 3000.0 / 180.0
)

// China bounding rectangle. Coarse on purpose: the official datum
// applies by jurisdiction, not geography, and devices near the border
// already get coordinates of both kinds.
const (
	minChinaLon = 73.33
	maxChinaLon = 135.05
	minChinaLat = 3.51
	maxChinaLat = 53.33
)

func outOfChina(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return true
	}
	return !(lon >= minChinaLon && lon <= maxChinaLon && lat >= minChinaLat && lat <= maxChinaLat)
}

// Wgs84ToGcj02 converts a WGS-84 point to GCJ-02. Outside China the
// conversion is the identity, exactly.
func Wgs84ToGcj02(wgsLat, wgsLon float64) (float64, float64) {
	if outOfChina(wgsLat, wgsLon) {
		return wgsLat, wgsLon
	}
	dLat := transformLat(wgsLon-105.0, wgsLat-35.0)
	dLon := transformLon(wgsLon-105.0, wgsLat-35.0)
	radLat := wgsLat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - eccentricitySqr*magic*magic
	sqrtMagic := math.Sqrt(magic)
	dLat = (dLat * 180.0) / ((semiMajorAxis * (1 - eccentricitySqr)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (semiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)
	return wgsLat + dLat, wgsLon + dLon
}

// Gcj02ToBd09 converts a GCJ-02 point to the BD-09 datum used by
// Baidu maps.
func Gcj02ToBd09(gcjLat, gcjLon float64) (float64, float64) {
	x, y := gcjLon, gcjLat
	z := math.Sqrt(x*x+y*y) + 0.00002*math.Sin(y*baiduCircleFactor)
	theta := math.Atan2(y, x) + 0.000003*math.Cos(x*baiduCircleFactor)
	return z*math.Sin(theta) + 0.006, z*math.Cos(theta) + 0.0065
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
