package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Huabao location report decoding: the 0x0200 report with
 *		its additional-information records, the 0x5501/0x5502
 *		compact reports and the batch containers.
 *
 * Description:	A 0x0200 body is a fixed 28-byte head (alarm, status,
 *		coordinates, altitude, speed, course, BCD time)
 *		followed by id/length/value records. Record ids are
 *		vendor soup: the same id can mean different things
 *		depending on the record length or the device model.
 *		After each record the cursor is forced to the record
 *		boundary, so a handler that reads too little or too
 *		much cannot derail the rest of the message.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errTruncated = errors.New("truncated message")

// decodeCoordinates reads the shared status word and coordinate pair
// of the 0x0200 head. Coordinates arrive unsigned; status bits 2 and
// 3 carry the hemisphere.
func decodeCoordinates(position *Position, session *DeviceSession, r *frameReader) error {
	status := uint64(r.ReadU32())

	position.Set(KeyIgnition, bitCheck(status, 0))
	if session.Model == "G1C Pro" {
		position.Set(KeyMotion, bitCheck(status, 4))
	}
	position.Set(KeyBlocked, bitCheck(status, 10))
	if session.Model == "MV810G" || session.Model == "MV710G" {
		position.Set(KeyDoor, bitCheck(status, 16))
	}
	position.Set(KeyCharge, bitCheck(status, 26))

	position.Valid = bitCheck(status, 1)

	lat := float64(r.ReadU32()) * 0.000001
	lon := float64(r.ReadU32()) * 0.000001
	if bitCheck(status, 2) {
		lat = -lat
	}
	if bitCheck(status, 3) {
		lon = -lon
	}
	return position.SetFixCoordinates(lat, lon)
}

// decodeCustomDouble reads the two-byte fixed-point value used by the
// temperature and humidity sensor records: a signed integer part and
// a fraction scaled by 255.
func decodeCustomDouble(r *frameReader) float64 {
	b1 := int(r.ReadI8())
	b2 := float64(r.ReadU8())
	sign := 1.0
	if b1 < 0 {
		sign = -1.0
		b1 = -b1
	}
	return sign * (float64(b1) + b2/255.0)
}

func (d *HuabaoProtocolDecoder) decodeLocation(session *DeviceSession, r *frameReader) (*Position, error) {
	position := NewPosition(d.protocol)
	position.DeviceID = session.DeviceID
	model := session.Model

	decodeAlarm(position, model, uint64(r.ReadU32()))

	if err := decodeCoordinates(position, session, r); err != nil {
		return nil, err
	}

	position.Altitude = float64(r.ReadI16())
	position.Speed = knotsFromKph(float64(r.ReadU16()) * 0.1)
	position.Course = float64(r.ReadU16())
	position.SetTime(readBcdDate(r, session.TimeZone()))

	// one firmware family sends a fixed 20-byte tail instead of records
	if r.Remaining() == 20 {
		r.Skip(4)
		position.Set(KeyOdometer, int64(r.ReadU32())*1000)
		position.Set(KeyBattery, float64(r.ReadU16())*0.1)
		r.ReadU32() // zone id
		position.Set(KeyRssi, int(r.ReadU8()))
		r.Skip(3)
		if r.Short() {
			return nil, errTruncated
		}
		return position, nil
	}

	network := &Network{}

	for r.Remaining() > 2 {
		subtype := int(r.ReadU8())
		length := int(r.ReadU8())
		endIndex := r.Pos() + length

		switch subtype {
		case 0x01:
			position.Set(KeyOdometer, int64(r.ReadU32())*100)
		case 0x02:
			fuel := uint64(r.ReadU16())
			if bitCheck(fuel, 15) {
				position.Set(KeyFuel, bitsTo(fuel, 15))
			} else {
				position.Set(KeyFuel, float64(fuel)/10.0)
			}
		case 0x06:
			position.Set(KeyDeviceTemp, int(r.ReadI16()))
		case 0x14:
			position.Set("videoAlarm", int64(r.ReadU32()))
		case 0x25:
			position.Set(KeyInput, int64(r.ReadU32()))
		case 0x2b, 0xa7:
			position.Set(PrefixAdc+"1", float64(r.ReadU16())/100.0)
			position.Set(PrefixAdc+"2", float64(r.ReadU16())/100.0)
		case 0x30:
			position.Set(KeyRssi, int(r.ReadU8()))
		case 0x31:
			position.Set(KeySatellites, int(r.ReadU8()))
		case 0x33:
			if length == 1 {
				position.Set("mode", int(r.ReadU8()))
			} else {
				value := r.ReadString(length)
				if strings.HasPrefix(value, "*M00") && len(value) >= 15 {
					lockStatus := value[8:15]
					if battery, err := strconv.Atoi(lockStatus[2:5]); err == nil {
						position.Set(KeyBattery, float64(battery)*0.01)
					}
				}
			}
		case 0x51:
			if length == 2 || length == 16 {
				for i := 1; i <= length/2; i++ {
					value := uint64(r.ReadU16())
					if value != 0xffff {
						if bitCheck(value, 15) {
							position.Set(PrefixTemp+strconv.Itoa(i), -float64(bitsTo(value, 15))/10.0)
						} else {
							position.Set(PrefixTemp+strconv.Itoa(i), float64(value)/10.0)
						}
					}
				}
			}
		case 0x56:
			position.Set(KeyBatteryLevel, int(r.ReadU8())*10)
			r.ReadU8() // reserved
		case 0x57:
			alarm := uint64(r.ReadU16())
			if bitCheck(alarm, 8) {
				position.AddAlarm(AlarmHardAcceleration)
			}
			if bitCheck(alarm, 9) {
				position.AddAlarm(AlarmHardBraking)
			}
			if bitCheck(alarm, 10) {
				position.AddAlarm(AlarmHardCornering)
			}
			r.ReadU16() // external switch state
			alarm2 := uint64(r.ReadU32())
			if model == "MV810G" || model == "MV710G" {
				if bitCheck(alarm2, 16) {
					position.AddAlarm(AlarmDoor)
				}
			}
		case 0x60:
			event := int(r.ReadU16())
			position.Set(KeyEvent, event)
			if event >= 0x0061 && event <= 0x0066 {
				r.Skip(6) // lock id
				position.Set(KeyDriverUniqueID, r.ReadString(8))
			}
		case 0x61:
			position.Set(KeyPower, float64(r.ReadU16())*0.01)
		case 0x63:
			for i := 1; i <= length/11; i++ {
				prefix := "lock" + strconv.Itoa(i)
				position.Set(prefix+"Id", r.ReadHex(6))
				position.Set(prefix+"Battery", float64(r.ReadU16())*0.001)
				position.Set(prefix+"Seal", r.ReadU8() == 0x31)
				r.ReadU8() // physical state
				r.ReadU8() // rssi
			}
		case 0x64:
			r.ReadU32() // alarm serial
			r.ReadU8()  // alarm state
			position.Set("adasAlarm", int(r.ReadU8()))
		case 0x65:
			r.ReadU32() // alarm serial
			r.ReadU8()  // alarm state
			position.Set("dmsAlarm", int(r.ReadU8()))
		case 0x67:
			position.Set("password", r.ReadString(8))
		case 0x68:
			position.Set(KeyBatteryLevel, float64(r.ReadU16())*0.01)
		case 0x69:
			position.Set(KeyBattery, float64(r.ReadU16())*0.01)
		case 0x70:
			r.ReadU32() // alarm serial
			r.ReadU8()  // alarm state
			switch r.ReadU8() {
			case 0x01:
				position.AddAlarm(AlarmHardAcceleration)
			case 0x02:
				position.AddAlarm(AlarmHardBraking)
			case 0x03:
				position.AddAlarm(AlarmHardCornering)
			case 0x16:
				position.AddAlarm(AlarmAccident)
			}
		case 0x77:
			for r.Pos() < endIndex {
				tire := "tire" + strconv.Itoa(int(r.ReadU8()))
				position.Set(tire+"SensorId", r.ReadHex(3))
				position.Set(tire+"Pressure", float64(bitsTo(uint64(r.ReadU16()), 10))/40.0)
				position.Set(tire+"Temp", int(r.ReadU8())-50)
				position.Set(tire+"Status", int(r.ReadU8()))
			}
		case 0x80:
			r.ReadU8() // content marker
			endIndex = len(r.data) - 2
			decodeExtension(position, r, endIndex)
		case 0x82:
			position.Set(KeyPower, float64(r.ReadU16())/10.0)
		case 0x91:
			position.Set(KeyBattery, float64(r.ReadU16())*0.1)
			position.Set(KeyRpm, int(r.ReadU16()))
			position.Set(KeyObdSpeed, int(r.ReadU8()))
			position.Set(KeyThrottle, int(r.ReadU8())*100/255)
			position.Set(KeyEngineLoad, int(r.ReadU8())*100/255)
			position.Set(KeyCoolantTemp, int(r.ReadU8())-40)
			r.ReadU16()
			position.Set(KeyFuelConsumption, float64(r.ReadU16())*0.01)
			r.ReadU16()
			r.ReadU32()
			r.ReadU16()
			position.Set(KeyFuelUsed, float64(r.ReadU16())*0.01)
		case 0x94:
			if length > 0 {
				position.Set(KeyVin, r.ReadString(length))
			}
		case 0xac:
			position.Set(KeyOdometer, int64(r.ReadU32()))
		case 0xbc:
			position.Set("driver", strings.TrimSpace(r.ReadString(length)))
		case 0xbd:
			position.Set(KeyDriverUniqueID, r.ReadString(length))
		case 0xd0:
			userStatus := uint64(r.ReadU32())
			if bitCheck(userStatus, 3) {
				position.AddAlarm(AlarmVibration)
			}
		case 0xd3:
			position.Set(KeyPower, float64(r.ReadU16())*0.1)
		case 0xd4, 0xe1:
			if length == 1 {
				position.Set(KeyBatteryLevel, int(r.ReadU8()))
			} else {
				position.Set(KeyDriverUniqueID, strconv.FormatUint(uint64(r.ReadU32()), 10))
			}
		case 0xd5:
			if length == 2 {
				position.Set(KeyBattery, float64(r.ReadU16())*0.01)
			} else {
				count := int(r.ReadU8())
				for i := 1; i <= count; i++ {
					prefix := "lock" + strconv.Itoa(i)
					position.Set(prefix+"Id", r.ReadHex(5))
					position.Set(prefix+"Card", r.ReadHex(5))
					position.Set(prefix+"Battery", int(r.ReadU8()))
					status := uint64(r.ReadU16())
					position.Set(prefix+"Locked", !bitCheck(status, 5))
				}
			}
		case 0xda:
			r.ReadU16() // rope cut count
			deviceStatus := uint64(r.ReadU8())
			position.Set("string", bitCheck(deviceStatus, 0))
			position.Set(KeyMotion, bitCheck(deviceStatus, 2))
			position.Set("cover", bitCheck(deviceStatus, 3))
		case 0xe2:
			if model != "DT800" {
				position.Set(KeyFuel, float64(r.ReadU32())*0.1)
			}
		case 0xe3:
			r.ReadU8() // reserved
			position.Set(KeyBatteryLevel, int(r.ReadU8()))
			position.Set(KeyBattery, float64(r.ReadU16())/100.0)
		case 0xe4:
			if r.ReadU8() == 0 {
				position.Set(KeyCharge, true)
			}
			position.Set(KeyBatteryLevel, int(r.ReadU8()))
		case 0xe6:
			if r.PeekString(7) == "$OBD-RT" {
				decodeObdRt(position, r.ReadString(length))
			} else {
				for r.Pos() < endIndex {
					sensorIndex := strconv.Itoa(int(r.ReadU8()))
					r.Skip(6) // mac address
					position.Set(PrefixTemp+sensorIndex, decodeCustomDouble(r))
					position.Set("humidity"+sensorIndex, decodeCustomDouble(r))
				}
			}
		case 0xea:
			if length > 2 {
				r.ReadU8() // extension marker
				for r.Pos() < endIndex {
					extendedType := int(r.ReadU8())
					extendedLength := int(r.ReadU8())
					extendedEndIndex := r.Pos() + extendedLength
					switch extendedType {
					case 0x11:
						position.Set("externalAlarms", int(r.ReadU16()))
						position.Set("alarmThresholdType", int(r.ReadU8()))
						r.ReadU32() // upper threshold
						r.ReadU32() // current value
						r.ReadU32() // lower threshold
					case 0x13:
						position.Set("externalIlluminance", int(r.ReadU16()))
					case 0x14:
						position.Set("externalAirPressure", int(r.ReadU16()))
					case 0x15:
						position.Set("externalHumidity", float64(r.ReadU16())/10.0)
					case 0x16:
						position.Set("externalTemp", float64(r.ReadU16())/10.0-50)
					}
					r.Seek(extendedEndIndex)
				}
			}
		case 0xeb:
			if r.PeekU16() > 200 {
				mcc := int(r.ReadU16())
				mnc := int(r.ReadU8())
				for r.Pos() < endIndex {
					network.AddCellTower(CellTowerFrom(
						mcc, mnc, int(r.ReadU16()), int64(r.ReadU16()), int(r.ReadU8())))
				}
			} else {
				for r.Pos() < endIndex {
					extendedLength := int(r.ReadU16())
					extendedEndIndex := r.Pos() + extendedLength
					extendedType := int(r.ReadU16())
					switch extendedType {
					case 0x0001:
						position.Set("fuel1", float64(r.ReadU16())*0.1)
						r.ReadU8() // unused
					case 0x0023:
						if value, err := strconv.ParseFloat(r.ReadString(6), 64); err == nil {
							position.Set("fuel2", value)
						}
					case 0x00b2:
						position.Set(KeyIccid, strings.ReplaceAll(r.ReadHex(10), "f", ""))
					case 0x00b9:
						r.ReadU8() // count
						wifi := strings.Split(r.ReadString(extendedLength-3), ",")
						for i := 0; i+1 < len(wifi); i += 2 {
							if rssi, err := strconv.Atoi(wifi[i+1]); err == nil {
								network.AddWifiAccessPoint(WifiAccessPointFrom(wifi[i], rssi))
							}
						}
					case 0x00c6:
						batteryAlarm := int(r.ReadU8())
						if batteryAlarm == 0x03 || batteryAlarm == 0x04 {
							position.Set(KeyAlarm, AlarmLowBattery)
						}
						position.Set("batteryAlarm", batteryAlarm)
					case 0x00ce:
						position.Set(KeyPower, float64(r.ReadU16())*0.01)
					case 0x00d8:
						network.AddCellTower(CellTowerFrom(
							int(r.ReadU16()), int(r.ReadU8()),
							int(r.ReadU16()), int64(r.ReadU32()), 0))
					case 0x00a8, 0x00e1:
						position.Set(KeyBatteryLevel, int(r.ReadU8()))
					}
					r.Seek(extendedEndIndex)
				}
			}
		case 0xed:
			position.Set(KeyCard, strings.TrimSpace(r.ReadString(length)))
		case 0xee:
			position.Set(KeyRssi, int(r.ReadU8()))
			position.Set(KeyPower, float64(r.ReadU16())*0.001)
			position.Set(KeyBattery, float64(r.ReadU16())*0.001)
			position.Set(KeySatellites, int(r.ReadU8()))
		case 0xf1:
			position.Set(KeyIccid, r.ReadString(length))
		case 0xf3:
			for r.Pos() < endIndex {
				extendedType := int(r.ReadU16())
				extendedLength := int(r.ReadU8())
				switch extendedType {
				case 0x0002:
					position.Set(KeyObdSpeed, float64(r.ReadU16())*0.1)
				case 0x0003:
					position.Set(KeyRpm, int(r.ReadU16()))
				case 0x0004:
					position.Set(KeyPower, float64(r.ReadU16())*0.001)
				case 0x0005:
					position.Set(KeyObdOdometer, int64(r.ReadU32())*100)
				case 0x0007:
					position.Set(KeyFuelConsumption, float64(r.ReadU16())*0.1)
				case 0x0008:
					position.Set(KeyEngineLoad, float64(r.ReadU16())*0.1)
				case 0x0009:
					position.Set(KeyCoolantTemp, int(r.ReadU16())-40)
				case 0x000b:
					position.Set("intakePressure", int(r.ReadU16()))
				case 0x000c:
					position.Set("intakeTemp", int(r.ReadU16())-40)
				case 0x000d:
					position.Set("intakeFlow", int(r.ReadU16()))
				case 0x000e:
					position.Set(KeyThrottle, int(r.ReadU16())*100/255)
				case 0x0050:
					position.Set(KeyVin, r.ReadString(17))
				case 0x0051:
					if extendedLength > 0 {
						position.Set("cvn", r.ReadHex(extendedLength))
					}
				case 0x0052:
					if extendedLength > 0 {
						position.Set("calid", r.ReadString(extendedLength))
					}
				case 0x0100:
					position.Set(KeyTripOdometer, float64(r.ReadU16())*0.1)
				case 0x0102:
					position.Set("tripFuel", float64(r.ReadU16())*0.1)
				case 0x0112:
					position.Set("hardAccelerationCount", int(r.ReadU16()))
				case 0x0113:
					position.Set("hardDecelerationCount", int(r.ReadU16()))
				case 0x0114:
					position.Set("hardCorneringCount", int(r.ReadU16()))
				default:
					r.Skip(extendedLength)
				}
			}
		case 0xf4:
			// the record id doubles as the per-entry MAC width here
			for r.Pos() < endIndex {
				mac := r.ReadHex(length)
				var sb strings.Builder
				for i := 0; i < len(mac); i += 2 {
					if i > 0 {
						sb.WriteByte(':')
					}
					sb.WriteString(mac[i : i+2])
				}
				network.AddWifiAccessPoint(WifiAccessPointFrom(sb.String(), int(r.ReadI8())))
			}
		case 0xf5:
			if length == 2 {
				position.Set("illuminance", int(r.ReadU16()))
			}
		case 0xf6:
			if length == 2 {
				position.Set("airPressure", int(r.ReadU16()))
			} else {
				event := int(r.ReadU8())
				position.Set(KeyEvent, event)
				if event == 2 {
					position.Set(KeyMotion, true)
				}
				fieldMask := uint64(r.ReadU8())
				if bitCheck(fieldMask, 0) {
					position.Set("lightSensor", int(r.ReadU16()))
				}
				if bitCheck(fieldMask, 1) {
					position.Set(PrefixTemp+"1", float64(r.ReadI16())*0.1)
				}
				if bitCheck(fieldMask, 2) {
					position.Set(KeyHumidity, float64(r.ReadI16())*0.1)
				}
			}
		case 0xf7:
			if length == 2 {
				position.Set(KeyHumidity, float64(r.ReadU16())/10.0)
			} else {
				position.Set(KeyBattery, float64(r.ReadU32())*0.001)
				if length >= 5 {
					batteryStatus := r.ReadU8()
					if batteryStatus == 2 || batteryStatus == 3 {
						position.Set(KeyCharge, true)
					}
				}
				if length >= 6 {
					position.Set(KeyBatteryLevel, int(r.ReadU8()))
				}
			}
		case 0xf8:
			position.Set(PrefixTemp+"2", float64(r.ReadU16())/10.0-50)
		case 0xfb:
			position.Set("container", r.ReadString(length))
		case 0xfc:
			position.Set(KeyGeofence, int(r.ReadU8()))
		case 0xfe:
			if length == 1 {
				position.Set(KeyBatteryLevel, int(r.ReadU8()))
			} else if length == 2 {
				position.Set(KeyPower, float64(r.ReadU16())*0.1)
			} else {
				if r.ReadU8() == 0x7c {
					for r.Pos() < endIndex {
						extendedType := int(r.ReadU8())
						extendedLength := int(r.ReadU8())
						if extendedType == 0x01 {
							alarms := uint64(r.ReadU32())
							if bitCheck(alarms, 0) {
								position.AddAlarm(AlarmHardAcceleration)
							}
							if bitCheck(alarms, 1) {
								position.AddAlarm(AlarmHardBraking)
							}
							if bitCheck(alarms, 2) {
								position.AddAlarm(AlarmHardCornering)
							}
							if bitCheck(alarms, 3) {
								position.AddAlarm(AlarmAccident)
							}
							if bitCheck(alarms, 4) {
								position.AddAlarm(AlarmTampering)
							}
						} else {
							r.Skip(extendedLength)
						}
					}
				}
				position.Set(KeyBatteryLevel, int(r.ReadU8()))
			}
		}

		r.Seek(endIndex)
	}

	if r.Short() {
		return nil, errTruncated
	}
	if !network.Empty() {
		position.Network = network
	}
	return position, nil
}

// decodeExtension handles the nested records of the 0x80 container,
// mostly OBD readings.
func decodeExtension(position *Position, r *frameReader, endIndex int) {
	for r.Pos() < endIndex {
		recordType := int(r.ReadU8())
		length := int(r.ReadU8())

		switch recordType {
		case 0x01:
			position.Set(KeyOdometer, int64(r.ReadU32())*100)
		case 0x02:
			position.Set(KeyFuel, float64(r.ReadU16())*0.1)
		case 0x03:
			position.Set(KeyObdSpeed, float64(r.ReadU16())*0.1)
		case 0x56:
			r.ReadU8() // power level
			position.Set(KeyBatteryLevel, int(r.ReadU8()))
		case 0x61:
			position.Set(KeyPower, float64(r.ReadU16())*0.01)
		case 0x69:
			position.Set(KeyBattery, float64(r.ReadU16())*0.01)
		case 0x80:
			position.Set(KeyObdSpeed, int(r.ReadU8()))
		case 0x81:
			position.Set(KeyRpm, int(r.ReadU16()))
		case 0x82:
			position.Set(KeyPower, float64(r.ReadU16())*0.1)
		case 0x83:
			position.Set(KeyEngineLoad, int(r.ReadU8()))
		case 0x84:
			position.Set(KeyCoolantTemp, int(r.ReadU8())-40)
		case 0x85:
			position.Set(KeyFuelConsumption, int(r.ReadU16()))
		case 0x86:
			position.Set("intakeTemp", int(r.ReadU8())-40)
		case 0x87:
			position.Set("intakeFlow", int(r.ReadU16()))
		case 0x88:
			position.Set("intakePressure", int(r.ReadU8()))
		case 0x89:
			position.Set(KeyThrottle, int(r.ReadU8()))
		case 0x8b:
			position.Set(KeyVin, r.ReadString(17))
		case 0x8c:
			position.Set(KeyObdOdometer, int64(r.ReadU32())*100)
		case 0x8d:
			position.Set(KeyTripOdometer, int64(r.ReadU16())*1000)
		case 0x8e:
			position.Set(KeyFuel, int(r.ReadU8()))
		case 0xa0:
			codes := r.ReadString(length)
			position.Set(KeyDtcs, strings.ReplaceAll(codes, ",", " "))
		case 0xcc:
			position.Set(KeyIccid, r.ReadString(20))
		default:
			r.Skip(length)
		}
	}
}

// decodeObdRt parses the "$OBD-RT" comma-separated live data string.
// Fields are positional; empty fields are simply absent.
func decodeObdRt(position *Position, data string) {
	values := strings.Split(data, ",")

	fields := []struct {
		key     string
		integer bool
	}{
		{KeyPower, false},
		{KeyRpm, false},
		{KeyObdSpeed, false},
		{KeyThrottle, false},
		{KeyEngineLoad, false},
		{KeyCoolantTemp, true},
		{KeyFuelConsumption, false}, // instant
		{KeyFuelConsumption, false}, // average
		{KeyTripOdometer, false},
		{KeyObdOdometer, false},
		{"tripFuelUsed", false},
		{KeyFuelUsed, false},
	}

	for i, field := range fields {
		index := i + 1 // skip header
		if index >= len(values) || values[index] == "" {
			continue
		}
		if field.integer {
			if value, err := strconv.Atoi(values[index]); err == nil {
				position.Set(field.key, value)
			}
		} else {
			if value, err := strconv.ParseFloat(values[index], 64); err == nil {
				position.Set(field.key, value)
			}
		}
	}
}

func (d *HuabaoProtocolDecoder) decodeLocation2(session *DeviceSession, r *frameReader, msgType uint16) (*Position, error) {
	position := NewPosition(d.protocol)
	position.DeviceID = session.DeviceID

	if err := decodeBinaryLocation(r, position); err != nil {
		return nil, err
	}
	position.Valid = msgType != msgLocationReportBlind

	position.Set(KeyRssi, int(r.ReadU8()))
	position.Set(KeySatellites, int(r.ReadU8()))
	position.Set(KeyOdometer, int64(r.ReadU32())*1000)

	battery := int(r.ReadU8())
	if battery <= 100 {
		position.Set(KeyBatteryLevel, battery)
	} else if battery == 0xaa || battery == 0xab {
		position.Set(KeyCharge, true)
	}

	cid := int64(r.ReadU32())
	lac := int(r.ReadU16())
	if cid > 0 && lac > 0 {
		network := &Network{}
		network.AddCellTower(CellTowerFromCidLac(d.config, cid, lac))
		position.Network = network
	}

	product := int(r.ReadU8())
	status := uint64(r.ReadU16())
	alarm := uint64(r.ReadU16())

	if product == 1 || product == 2 {
		if bitCheck(alarm, 0) {
			position.AddAlarm(AlarmLowPower)
		}
	} else if product == 3 {
		position.Set(KeyBlocked, bitCheck(status, 5))
		if bitCheck(alarm, 0) {
			position.AddAlarm(AlarmOverspeed)
		}
		if bitCheck(alarm, 1) {
			position.AddAlarm(AlarmLowPower)
		}
		if bitCheck(alarm, 2) {
			position.AddAlarm(AlarmVibration)
		}
		if bitCheck(alarm, 3) {
			position.AddAlarm(AlarmLowBattery)
		}
		if bitCheck(alarm, 5) {
			position.AddAlarm(AlarmGeofenceEnter)
		}
		if bitCheck(alarm, 6) {
			position.AddAlarm(AlarmGeofenceExit)
		}
	}

	position.Set(KeyStatus, int(status))

	for r.Remaining() > 2 {
		id := int(r.ReadU8())
		length := int(r.ReadU8())
		switch id {
		case 0x02:
			position.Altitude = float64(r.ReadI16())
		case 0x10:
			position.Set("wakeSource", int(r.ReadU8()))
		case 0x0a:
			if length == 3 {
				r.ReadU16() // mcc
				r.ReadU8()  // mnc
			} else {
				r.Skip(length)
			}
		case 0x0b:
			position.Set("lockCommand", int(r.ReadU8()))
			if length >= 5 && length <= 6 {
				position.Set("lockCard", int64(r.ReadU32()))
			} else if length >= 7 {
				position.Set("lockPassword", r.ReadString(6))
			}
			if length%2 == 0 {
				position.Set("unlockResult", int(r.ReadU8()))
			}
		case 0x0c:
			x := tiltComponent(r.ReadU16())
			y := tiltComponent(r.ReadU16())
			z := tiltComponent(r.ReadU16())
			position.Set("tilt", fmt.Sprintf("[%d,%d,%d]", x, y, z))
		case 0xfc:
			position.Set(KeyGeofence, int(r.ReadU8()))
		default:
			r.Skip(length)
		}
	}

	if r.Short() {
		return nil, errTruncated
	}
	return position, nil
}

func tiltComponent(value uint16) int {
	v := int(value)
	if v > 0x8000 {
		v -= 0x10000
	}
	return v
}

func (d *HuabaoProtocolDecoder) decodeLocationBatch(session *DeviceSession, r *frameReader, msgType uint16) ([]*Position, error) {
	var positions []*Position

	locationType := 0
	if msgType == msgLocationBatch {
		r.ReadU16() // count
		locationType = int(r.ReadU8())
	}

	for r.Remaining() > 2 {
		var length int
		if msgType == msgLocationBatch2 {
			length = int(r.ReadU8())
		} else {
			length = int(r.ReadU16())
		}
		fragment := newFrameReader(r.ReadBytes(length))
		if r.Short() {
			return positions, errTruncated
		}
		position, err := d.decodeLocation(session, fragment)
		if err != nil {
			return positions, err
		}
		if locationType > 0 {
			position.Set(KeyArchive, true)
		}
		positions = append(positions, position)
	}

	return positions, nil
}
