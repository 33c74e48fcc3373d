package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Normalized position record produced by every protocol
 *		decoder, plus the open attribute bag shared by all of
 *		them.
 *
 * Description:	Coordinates are stored twice: the raw WGS-84 values as
 *		reported by the device, and the published values which
 *		are GCJ-02 inside mainland China (see geodetic.go).
 *		The paired WGS-84 setters latch each axis and run the
 *		transform once both have been written.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"time"

	"github.com/golang/geo/s2"
)

// Reserved attribute keys. The bag accepts arbitrary keys; decoders
// use these for fields with agreed meanings and units.
const (
	KeyOdometer        = "odometer" // meters
	KeyServiceOdometer = "serviceOdometer"
	KeyTripOdometer    = "tripOdometer"
	KeyObdOdometer     = "obdOdometer"
	KeyHours           = "hours"
	KeyRssi            = "rssi"
	KeySatellites      = "satellites"
	KeyHdop            = "hdop"
	KeyVdop            = "vdop"
	KeyPdop            = "pdop"
	KeyPower           = "power"   // volts
	KeyBattery         = "battery" // volts
	KeyBatteryLevel    = "batteryLevel"
	KeyFuel            = "fuel"
	KeyFuelUsed        = "fuelUsed"
	KeyFuelConsumption = "fuelConsumption"
	KeyFuelLevel       = "fuelLevel"
	KeyIgnition        = "ignition"
	KeyMotion          = "motion"
	KeyCharge          = "charge"
	KeyBlocked         = "blocked"
	KeyDoor            = "door"
	KeyAlarm           = "alarm"
	KeyEvent           = "event"
	KeyStatus          = "status"
	KeyInput           = "input"
	KeyOutput          = "output"
	KeyRpm             = "rpm"
	KeyThrottle        = "throttle"
	KeyEngineLoad      = "engineLoad"
	KeyCoolantTemp     = "coolantTemp"
	KeyEngineTemp      = "engineTemp"
	KeyDeviceTemp      = "deviceTemp"
	KeyHumidity        = "humidity"
	KeyObdSpeed        = "obdSpeed"
	KeyVin             = "vin"
	KeyIccid           = "iccid"
	KeyDtcs            = "dtcs"
	KeyCard            = "card"
	KeyDriverUniqueID  = "driverUniqueId"
	KeyResult          = "result"
	KeyArchive         = "archive"
	KeyApproximate     = "approximate"
	KeyGeofence        = "geofence"
	KeyGSensor         = "gSensor"

	// Indexed prefixes; the first channel is 1 (e.g. "temp1").
	PrefixTemp  = "temp"
	PrefixAdc   = "adc"
	PrefixIO    = "io"
	PrefixIn    = "in"
	PrefixOut   = "out"
	PrefixCount = "count"
)

// Alarm tokens. addAlarm joins them with commas in decode order.
const (
	AlarmSOS              = "sos"
	AlarmOverspeed        = "overspeed"
	AlarmVibration        = "vibration"
	AlarmMovement         = "movement"
	AlarmLowBattery       = "lowBattery"
	AlarmLowPower         = "lowPower"
	AlarmPowerOff         = "powerOff"
	AlarmPowerOn          = "powerOn"
	AlarmPowerCut         = "powerCut"
	AlarmPowerRestored    = "powerRestored"
	AlarmTampering        = "tampering"
	AlarmRemoving         = "removing"
	AlarmFault            = "fault"
	AlarmGpsAntennaCut    = "gpsAntennaCut"
	AlarmAccident         = "accident"
	AlarmHardAcceleration = "hardAcceleration"
	AlarmHardBraking      = "hardBraking"
	AlarmHardCornering    = "hardCornering"
	AlarmFatigueDriving   = "fatigueDriving"
	AlarmLaneChange       = "laneChange"
	AlarmGeofence         = "geofence"
	AlarmGeofenceEnter    = "geofenceEnter"
	AlarmGeofenceExit     = "geofenceExit"
	AlarmDoor             = "door"
	AlarmTow              = "tow"
)

// CoordinateError is returned by the range-checked coordinate setters.
// A decoder receiving one must discard the whole position.
type CoordinateError struct {
	Axis  string
	Value float64
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("%s out of range: %f", e.Axis, e.Value)
}

const earthRadiusMeters = 6371000.0

// Position is the uniform record handed to the downstream pipeline.
type Position struct {
	Protocol   string
	DeviceID   int64
	ServerTime time.Time
	DeviceTime time.Time
	FixTime    time.Time
	Valid      bool
	Outdated   bool

	Altitude float64 // meters
	Speed    float64 // knots
	Course   float64 // degrees
	Accuracy float64 // meters
	Address  string

	Network     *Network
	GeofenceIDs []int64

	Attributes map[string]any

	latitude  float64 // post-transform, published
	longitude float64

	latitudeWgs84  float64 // raw device-reported
	longitudeWgs84 float64
	latLatched     bool
	lonLatched     bool
}

func NewPosition(protocol string) *Position {
	return &Position{
		Protocol:   protocol,
		ServerTime: time.Now(),
		Attributes: make(map[string]any),
	}
}

func (p *Position) Latitude() float64  { return p.latitude }
func (p *Position) Longitude() float64 { return p.longitude }

func (p *Position) LatitudeWgs84() float64  { return p.latitudeWgs84 }
func (p *Position) LongitudeWgs84() float64 { return p.longitudeWgs84 }

// SetLatitude stores an already-published latitude, bypassing the
// datum transform. Used by protocols that report GCJ-02 directly and
// by the last-location copy helper.
func (p *Position) SetLatitude(latitude float64) error {
	if latitude < -90 || latitude > 90 {
		return &CoordinateError{Axis: "latitude", Value: latitude}
	}
	p.latitude = latitude
	return nil
}

func (p *Position) SetLongitude(longitude float64) error {
	if longitude < -180 || longitude > 180 {
		return &CoordinateError{Axis: "longitude", Value: longitude}
	}
	p.longitude = longitude
	return nil
}

// SetLatitudeWgs84 records the device-reported latitude. The GCJ-02
// transform fires once both axes have been written since the last
// publication; writing one axis alone just latches it.
func (p *Position) SetLatitudeWgs84(latitude float64) error {
	p.latitudeWgs84 = latitude
	p.latLatched = true
	if p.lonLatched {
		return p.publishTransformed()
	}
	return nil
}

func (p *Position) SetLongitudeWgs84(longitude float64) error {
	p.longitudeWgs84 = longitude
	p.lonLatched = true
	if p.latLatched {
		return p.publishTransformed()
	}
	return nil
}

// SetFixCoordinates writes both WGS-84 axes at once. New decoders
// should prefer this over the paired single-axis setters.
func (p *Position) SetFixCoordinates(latitude, longitude float64) error {
	p.latitudeWgs84 = latitude
	p.latLatched = true
	p.longitudeWgs84 = longitude
	p.lonLatched = true
	return p.publishTransformed()
}

func (p *Position) publishTransformed() error {
	lat, lon := Wgs84ToGcj02(p.latitudeWgs84, p.longitudeWgs84)
	p.latLatched = false
	p.lonLatched = false
	if err := p.SetLatitude(lat); err != nil {
		return err
	}
	return p.SetLongitude(lon)
}

// SetTime records the device-reported time as both the device clock
// reading and the fix time.
func (p *Position) SetTime(t time.Time) {
	p.DeviceTime = t
	p.FixTime = t
}

func (p *Position) Set(key string, value any) {
	p.Attributes[key] = value
}

func (p *Position) Has(key string) bool {
	_, ok := p.Attributes[key]
	return ok
}

// AddAlarm appends an alarm token to the comma-joined alarm attribute.
// Tokens are not deduplicated; order of appends is preserved. A nil
// append (empty token) is ignored so callers can pass conditional
// results straight through.
func (p *Position) AddAlarm(alarm string) {
	if alarm == "" {
		return
	}
	if existing, ok := p.Attributes[KeyAlarm]; ok {
		p.Attributes[KeyAlarm] = fmt.Sprintf("%v,%s", existing, alarm)
	} else {
		p.Attributes[KeyAlarm] = alarm
	}
}

// DistanceTo returns the great-circle distance in meters from this
// position's published coordinates to the given point.
func (p *Position) DistanceTo(latitude, longitude float64) float64 {
	from := s2.LatLngFromDegrees(p.latitude, p.longitude)
	to := s2.LatLngFromDegrees(latitude, longitude)
	return from.Distance(to).Radians() * earthRadiusMeters
}
