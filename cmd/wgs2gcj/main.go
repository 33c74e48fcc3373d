/* WGS-84 to GCJ-02 / BD-09 coordinate conversion */
package main

import (
	"fmt"
	"os"
	"strconv"

	trackgw "github.com/openfleet/trackgw/src"
)

func main() {
	if len(os.Args) != 3 {
		usage()
		return
	}

	lat, latErr := strconv.ParseFloat(os.Args[1], 64)
	lon, lonErr := strconv.ParseFloat(os.Args[2], 64)
	if latErr != nil || lonErr != nil {
		usage()
		os.Exit(1)
	}

	gcjLat, gcjLon := trackgw.Wgs84ToGcj02(lat, lon)
	bdLat, bdLon := trackgw.Gcj02ToBd09(gcjLat, gcjLon)

	if gcjLat == lat && gcjLon == lon {
		fmt.Printf("Outside the mainland China rectangle, GCJ-02 equals WGS-84.\n")
	}

	fmt.Printf("WGS-84  lat = %.8f, lon = %.8f\n", lat, lon)
	fmt.Printf("GCJ-02  lat = %.8f, lon = %.8f\n", gcjLat, gcjLon)
	fmt.Printf("BD-09   lat = %.8f, lon = %.8f\n", bdLat, bdLon)
}

func usage() {
	fmt.Printf("WGS-84 to GCJ-02 / BD-09 coordinate conversion\n")
	fmt.Printf("\n")
	fmt.Printf("Usage:\n")
	fmt.Printf("\twgs2gcj  latitude  longitude\n")
	fmt.Printf("\n")
	fmt.Printf("where,\n")
	fmt.Printf("\tLatitude and longitude are WGS-84 decimal degrees.\n")
	fmt.Printf("\t   Use negative for south or west.\n")
	fmt.Printf("\n")
	fmt.Printf("Example:\n")
	fmt.Printf("\twgs2gcj 39.90 116.40\n")
}
