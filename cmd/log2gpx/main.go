/* Convert trackgw position log to GPX format */
package main

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// One position log row worth keeping.
type fix struct {
	device   string
	time     string
	lat      float64
	lon      float64
	altitude float64
	speed    float64 /* Meters per second. */
	course   float64
	desc     string
}

const unknownValue = float64(-999)

const metersPerSecondPerKnot = 0.51444444444

func main() {
	var fixes []fix

	readInto := func(fp *os.File) {
		got, err := readLog(fp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %s\n", fp.Name(), err)
			os.Exit(1)
		}
		fixes = append(fixes, got...)
	}

	if len(os.Args) == 1 {
		readInto(os.Stdin)
	} else {
		for _, arg := range os.Args[1:] {
			if arg == "-" {
				readInto(os.Stdin)
				continue
			}
			fp, err := os.Open(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Can't open %s for read: %s\n", arg, err)
				os.Exit(1)
			}
			readInto(fp)
			fp.Close()
		}
	}

	if len(fixes) == 0 {
		fmt.Fprintf(os.Stderr, "Nothing to process.\n")
		os.Exit(1)
	}

	writeGpx(os.Stdout, fixes)
}

// readLog reads position log CSV rows, keeping only valid fixes. The
// column layout matches what the gateway's position log writes:
// time, protocol, device, valid, latitude, longitude, altitude,
// speed, course, attributes.
func readLog(r io.Reader) ([]fix, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var fixes []fix
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(fields) < 10 {
			continue
		}

		ptime := fields[0]
		pdevice := fields[2]
		pvalid := fields[3]
		platitude := fields[4]
		plongitude := fields[5]
		paltitude := fields[6]
		pspeed := fields[7] /* Knots, must convert. */
		pcourse := fields[8]
		pattributes := fields[9]

		// header line
		if ptime == "time" {
			continue
		}
		// tracks made of invalid fixes are noise
		if pvalid != "true" {
			continue
		}
		if ptime == "" || pdevice == "" || platitude == "" || plongitude == "" {
			continue
		}

		var f fix
		f.device = pdevice
		f.time = ptime
		f.lat, _ = strconv.ParseFloat(platitude, 64)
		f.lon, _ = strconv.ParseFloat(plongitude, 64)

		f.altitude = unknownValue
		f.speed = unknownValue
		f.course = unknownValue
		if paltitude != "" {
			f.altitude, _ = strconv.ParseFloat(paltitude, 64)
		}
		if pspeed != "" {
			knots, _ := strconv.ParseFloat(pspeed, 64)
			f.speed = knots * metersPerSecondPerKnot
		}
		if pcourse != "" {
			f.course, _ = strconv.ParseFloat(pcourse, 64)
		}
		f.desc = pattributes

		fixes = append(fixes, f)
	}
	return fixes, nil
}

// writeGpx groups fixes by device, emits a track for every device
// that moved and a waypoint for its last known position.
func writeGpx(w io.Writer, fixes []fix) {
	// everything for the same device adjacent and in time order
	slices.SortFunc(fixes, func(a, b fix) int {
		if n := strings.Compare(a.device, b.device); n != 0 {
			return n
		}
		return cmp.Compare(a.time, b.time)
	})

	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"yes\"?>\n")
	fmt.Fprintf(w, "<gpx version=\"1.1\" creator=\"trackgw\">\n")

	first := 0
	for first < len(fixes) {
		last := first
		for last < len(fixes)-1 && fixes[first].device == fixes[last+1].device {
			last++
		}
		writeDevice(w, fixes[first:last+1])
		first = last + 1
	}

	fmt.Fprintf(w, "</gpx>\n")
}

func writeDevice(w io.Writer, fixes []fix) {
	moved := false
	for _, f := range fixes[1:] {
		if f.lat != fixes[0].lat || f.lon != fixes[0].lon {
			moved = true
		}
	}

	name := xmlText("device-" + fixes[0].device)

	if moved {
		fmt.Fprintf(w, "  <trk>\n")
		fmt.Fprintf(w, "    <name>%s</name>\n", name)
		fmt.Fprintf(w, "    <trkseg>\n")

		for _, f := range fixes {
			fmt.Fprintf(w, "      <trkpt lat=\"%.6f\" lon=\"%.6f\">\n", f.lat, f.lon)
			if f.altitude != unknownValue {
				fmt.Fprintf(w, "        <ele>%.1f</ele>\n", f.altitude)
			}
			if f.speed != unknownValue {
				fmt.Fprintf(w, "        <speed>%.1f</speed>\n", f.speed)
			}
			if f.course != unknownValue {
				fmt.Fprintf(w, "        <course>%.1f</course>\n", f.course)
			}
			fmt.Fprintf(w, "        <time>%s</time>\n", xmlText(f.time))
			fmt.Fprintf(w, "      </trkpt>\n")
		}

		fmt.Fprintf(w, "    </trkseg>\n")
		fmt.Fprintf(w, "  </trk>\n")
	}

	/* Last known position, also for moving devices. */
	tail := fixes[len(fixes)-1]
	fmt.Fprintf(w, "  <wpt lat=\"%.6f\" lon=\"%.6f\">\n", tail.lat, tail.lon)
	if tail.altitude != unknownValue {
		fmt.Fprintf(w, "    <ele>%.1f</ele>\n", tail.altitude)
	}
	if tail.desc != "" {
		fmt.Fprintf(w, "    <desc>%s</desc>\n", xmlText(tail.desc))
	}
	fmt.Fprintf(w, "    <name>%s</name>\n", name)
	fmt.Fprintf(w, "  </wpt>\n")
}

// xmlText replaces significant characters with predefined entities.
func xmlText(in string) string {
	var out strings.Builder
	for _, p := range in {
		switch p {
		case '&':
			out.WriteString("&amp;")
		case '"':
			out.WriteString("&quot;")
		case '\'':
			out.WriteString("&apos;")
		case '<':
			out.WriteString("&lt;")
		case '>':
			out.WriteString("&gt;")
		default:
			out.WriteRune(p)
		}
	}
	return out.String()
}
