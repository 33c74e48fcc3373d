package trackgw

// Speed unit conversions. Positions carry speed in knots.

const knotsPerKph = 0.539957

func knotsFromKph(kph float64) float64 {
	return kph * knotsPerKph
}
