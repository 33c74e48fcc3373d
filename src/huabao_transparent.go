package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Huabao 0x0900 transparent payload decoding.
 *
 * Description:	The transparent channel tunnels vendor data past the
 *		standard message set: driver card readers, raw OBD
 *		text, structured vehicle telemetry and a plain binary
 *		fix. The first byte selects the payload format.
 *
 *---------------------------------------------------------------*/

import (
	"strconv"
	"strings"
	"time"
)

func (d *HuabaoProtocolDecoder) decodeTransparent(session *DeviceSession, r *frameReader) (*Position, error) {
	payloadType := r.ReadU8()

	switch payloadType {

	case 0x40:
		position := NewPosition(d.protocol)
		position.DeviceID = session.DeviceID
		session.LastLocation(position, time.Time{})
		data := strings.TrimSpace(r.ReadString(r.Remaining()))
		if strings.HasPrefix(data, "GTSL") {
			values := strings.Split(data, "|")
			if len(values) > 4 {
				position.Set(KeyDriverUniqueID, values[4])
			}
		}
		if len(position.Attributes) == 0 {
			return nil, nil
		}
		return position, nil

	case 0x41:
		position := NewPosition(d.protocol)
		position.DeviceID = session.DeviceID
		session.LastLocation(position, time.Time{})
		data := strings.TrimSpace(r.ReadString(r.Remaining() - 2))
		decodeObdRt(position, data)
		return position, nil

	case 0xf0:
		return d.decodeTransparentTelemetry(session, r)

	case 0xff:
		position := NewPosition(d.protocol)
		position.DeviceID = session.DeviceID
		position.Valid = true
		position.SetTime(readBcdDate(r, session.TimeZone()))
		lat := float64(r.ReadI32()) * 0.000001
		lon := float64(r.ReadI32()) * 0.000001
		if err := position.SetFixCoordinates(lat, lon); err != nil {
			return nil, err
		}
		position.Altitude = float64(r.ReadI16())
		position.Speed = knotsFromKph(float64(r.ReadU16()) * 0.1)
		position.Course = float64(r.ReadU16())
		if r.Short() {
			return nil, errTruncated
		}
		return position, nil
	}

	return nil, nil
}

// decodeTransparentTelemetry handles the 0xF0 structured payload: a
// timestamp and archive flag followed by one of several subrecord
// layouts, most of which end with a standard coordinate block.
func (d *HuabaoProtocolDecoder) decodeTransparentTelemetry(session *DeviceSession, r *frameReader) (*Position, error) {
	position := NewPosition(d.protocol)
	position.DeviceID = session.DeviceID

	when := readBcdDate(r, session.TimeZone())

	if r.ReadU8() > 0 {
		position.Set(KeyArchive, true)
	}
	r.ReadU8() // vehicle type

	subtype := r.ReadU8()
	switch subtype {

	case 0x01: // vehicle sensors
		count := int(r.ReadU8())
		for i := 0; i < count; i++ {
			id := int(r.ReadU16())
			length := int(r.ReadU8())
			switch id {
			case 0x0102, 0x0528, 0x0546:
				position.Set(KeyOdometer, int64(r.ReadU32())*100)
			case 0x0103:
				position.Set(KeyFuel, float64(r.ReadU32())*0.01)
			case 0x0111:
				position.Set("fuelTemp", int(r.ReadU8())-40)
			case 0x012e:
				position.Set("oilLevel", float64(r.ReadU16())*0.1)
			case 0x052a:
				position.Set(KeyFuel, float64(r.ReadU16())*0.01)
			case 0x0105, 0x052c:
				position.Set(KeyFuelUsed, float64(r.ReadU32())*0.01)
			case 0x014a, 0x0537, 0x0538, 0x0539:
				position.Set(KeyFuelConsumption, float64(r.ReadU16())*0.01)
			case 0x052b:
				position.Set(KeyFuel, int(r.ReadU8()))
			case 0x052d:
				position.Set(KeyCoolantTemp, int(r.ReadU8())-40)
			case 0x052e:
				position.Set("airTemp", int(r.ReadU8())-40)
			case 0x0530:
				position.Set(KeyPower, float64(r.ReadU16())*0.001)
			case 0x0535:
				position.Set(KeyObdSpeed, float64(r.ReadU16())*0.1)
			case 0x0536:
				position.Set(KeyRpm, int(r.ReadU16()))
			case 0x053d:
				position.Set("intakePressure", float64(r.ReadU16())*0.1)
			case 0x0544:
				position.Set("liquidLevel", int(r.ReadU8()))
			case 0x0547, 0x0548:
				position.Set(KeyThrottle, int(r.ReadU8()))
			default:
				switch length {
				case 1:
					position.Set(PrefixIO+strconv.Itoa(id), int(r.ReadU8()))
				case 2:
					position.Set(PrefixIO+strconv.Itoa(id), int(r.ReadU16()))
				case 4:
					position.Set(PrefixIO+strconv.Itoa(id), int64(r.ReadU32()))
				default:
					r.Skip(length)
				}
			}
		}
		session.LastLocation(position, when)
		if err := decodeCoordinates(position, session, r); err != nil {
			return nil, err
		}
		position.SetTime(when)

	case 0x02: // diagnostic trouble codes
		var codes []string
		count := int(r.ReadU16())
		for i := 0; i < count; i++ {
			r.ReadU32() // system id
			codeCount := int(r.ReadU16())
			for j := 0; j < codeCount; j++ {
				r.ReadU32() // dtc
				r.ReadU32() // status
				codes = append(codes, strings.TrimSpace(r.ReadString(int(r.ReadU16()))))
			}
		}
		position.Set(KeyDtcs, strings.Join(codes, " "))
		session.LastLocation(position, when)
		if err := decodeCoordinates(position, session, r); err != nil {
			return nil, err
		}
		position.SetTime(when)

	case 0x03: // alarm events
		count := int(r.ReadU8())
		for i := 0; i < count; i++ {
			id := int(r.ReadU8())
			length := int(r.ReadU8())
			switch id {
			case 0x01:
				position.AddAlarm(AlarmPowerRestored)
			case 0x02:
				position.AddAlarm(AlarmPowerCut)
			case 0x1a:
				position.AddAlarm(AlarmHardAcceleration)
			case 0x1b:
				position.AddAlarm(AlarmHardBraking)
			case 0x1c:
				position.AddAlarm(AlarmHardCornering)
			case 0x1d, 0x1e, 0x1f:
				position.AddAlarm(AlarmLaneChange)
			case 0x23:
				position.AddAlarm(AlarmFatigueDriving)
			case 0x26, 0x27, 0x28:
				position.AddAlarm(AlarmAccident)
			case 0x31, 0x32:
				position.AddAlarm(AlarmDoor)
			}
			r.Skip(length)
		}
		session.LastLocation(position, when)
		if err := decodeCoordinates(position, session, r); err != nil {
			return nil, err
		}
		position.SetTime(when)

	case 0x0b: // vin
		if r.ReadU8() > 0 {
			position.Set(KeyVin, r.ReadString(17))
		}
		session.LastLocation(position, when)

	case 0x15: // driving event number
		event := int(r.ReadI32())
		switch event {
		case 51:
			position.AddAlarm(AlarmHardAcceleration)
		case 52:
			position.AddAlarm(AlarmHardBraking)
		case 53:
			position.AddAlarm(AlarmHardCornering)
		case 54:
			position.AddAlarm(AlarmLaneChange)
		case 56:
			position.AddAlarm(AlarmAccident)
		default:
			position.Set(KeyEvent, event)
		}
		session.LastLocation(position, when)

	default:
		return nil, nil
	}

	if r.Short() {
		return nil, errTruncated
	}
	return position, nil
}
