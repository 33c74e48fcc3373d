package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Huabao (JT/T 808 style) protocol decoder: message
 *		envelope, dispatch and acknowledgements.
 *
 * Description:	After the frame decoder has unescaped a message, the
 *		envelope is
 *
 *		  delim(1) type(2) attribute(2) id(6|7) index(1|2)
 *		  body... checksum(1) delim(1)
 *
 *		The id is 7 bytes under the alternative 0xE7 framing.
 *		The index is a single byte only for the 0x5501/0x5502
 *		location reports. The checksum is the XOR of every
 *		byte from the type field through the last body byte.
 *
 *		Location body decoding lives in huabao_location.go,
 *		transparent payloads in huabao_transparent.go and
 *		command encoding in huabao_encoder.go.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// ErrBadChecksum rejects a message whose XOR checksum does not match.
// The connection survives; only the message is dropped.
var ErrBadChecksum = errors.New("bad checksum")

// Message types.
const (
	msgTerminalGeneralResponse  = 0x0001
	msgGeneralResponse          = 0x8001
	msgGeneralResponse2         = 0x4401
	msgHeartbeat                = 0x0002
	msgHeartbeat2               = 0x0506
	msgTerminalRegister         = 0x0100
	msgTerminalRegisterResponse = 0x8100
	msgTerminalControl          = 0x8105
	msgTerminalAuth             = 0x0102
	msgLocationReport           = 0x0200
	msgLocationBatch2           = 0x0210
	msgAcceleration             = 0x2070
	msgLocationReport2          = 0x5501
	msgLocationReportBlind      = 0x5502
	msgLocationBatch            = 0x0704
	msgOilControl               = 0xa006
	msgTimeSyncRequest          = 0x0109
	msgTimeSyncResponse         = 0x8109
	msgPhoto                    = 0x8888
	msgTransparent              = 0x0900
	msgParameterSetting         = 0x0310
	msgSendTextMessage          = 0x8300
	msgReportTextMessage        = 0x6006
	msgConfigurationParameters  = 0x8103
	msgCommandResponse          = 0x0701
)

const resultSuccess = 0

var allDigits = regexp.MustCompile(`^[0-9]+$`)

// HuabaoProtocolDecoder interprets framed Huabao messages. One
// instance per connection: the delimiter (and with it the id width)
// is latched from the first message seen.
type HuabaoProtocolDecoder struct {
	protocol  string
	config    *Config
	sessions  *SessionRegistry
	delimiter byte

	checksumWarned bool
}

func NewHuabaoProtocolDecoder(config *Config, sessions *SessionRegistry) *HuabaoProtocolDecoder {
	return &HuabaoProtocolDecoder{
		protocol:  "huabao",
		config:    config,
		sessions:  sessions,
		delimiter: frameDelimiter,
	}
}

func (d *HuabaoProtocolDecoder) alternative() bool {
	return d.delimiter == altFrameDelimiter
}

// formatMessage assembles a complete response envelope. The index
// field is written as the literal 0x01 (short) or 0x0000 (long):
// devices in the field match acks by message type, not index, and
// the deployed platform has always sent zeros here.
func formatMessage(delimiter byte, msgType uint16, id []byte, shortIndex bool, body []byte) []byte {
	buf := make([]byte, 0, len(id)+len(body)+10)
	buf = append(buf, delimiter)
	buf = binary.BigEndian.AppendUint16(buf, msgType)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(body)))
	buf = append(buf, id...)
	if shortIndex {
		buf = append(buf, 0x01)
	} else {
		buf = append(buf, 0x00, 0x00)
	}
	buf = append(buf, body...)
	buf = append(buf, xorChecksum(buf[1:]))
	buf = append(buf, delimiter)
	return buf
}

func (d *HuabaoProtocolDecoder) sendResponse(conn Connection, msgType uint16, id []byte, shortIndex bool, body []byte) {
	if conn == nil {
		return
	}
	framed := NewHuabaoFrameEncoder().Encode(formatMessage(d.delimiter, msgType, id, shortIndex, body))
	if err := conn.WriteMessage(framed); err != nil {
		Logger.Debug("response write failed", "protocol", d.protocol, "error", err)
	}
}

func (d *HuabaoProtocolDecoder) sendGeneralResponse(conn Connection, id []byte, msgType uint16, index uint16) {
	body := make([]byte, 0, 5)
	body = binary.BigEndian.AppendUint16(body, index)
	body = binary.BigEndian.AppendUint16(body, msgType)
	body = append(body, resultSuccess)
	d.sendResponse(conn, msgGeneralResponse, id, false, body)
}

func (d *HuabaoProtocolDecoder) sendGeneralResponse2(conn Connection, id []byte, msgType uint16) {
	body := make([]byte, 0, 3)
	body = binary.BigEndian.AppendUint16(body, msgType)
	body = append(body, resultSuccess)
	d.sendResponse(conn, msgGeneralResponse2, id, true, body)
}

// decodeID turns the raw id field into the device unique id. A field
// of pure decimal digits (BCD phone number) is used verbatim; binary
// ids are reassembled into an IMEI with its Luhn check digit.
func decodeID(id []byte) string {
	serial := newFrameReader(id).ReadHex(len(id))
	if allDigits.MatchString(serial) {
		return serial
	}
	imei := uint64(binary.BigEndian.Uint16(id[0:2]))<<32 + uint64(binary.BigEndian.Uint32(id[2:6]))
	return strconv.FormatUint(imei, 10) + strconv.Itoa(luhnDigit(imei))
}

// decodeAlarm maps the 32-bit alarm word to alarm tokens, low bit
// first. A few device families reuse bits for their own meanings.
func decodeAlarm(position *Position, model string, value uint64) {
	switch model {
	case "G-360P", "G-508P":
		if bitCheck(value, 0) || bitCheck(value, 4) {
			position.AddAlarm(AlarmRemoving)
		}
		if bitCheck(value, 1) {
			position.AddAlarm(AlarmTampering)
		}
	case "AL300", "GL100":
		if bitCheck(value, 16) {
			position.AddAlarm(AlarmMovement)
		}
	default:
		if bitCheck(value, 0) {
			position.AddAlarm(AlarmSOS)
		}
		if bitCheck(value, 1) {
			position.AddAlarm(AlarmOverspeed)
		}
		if bitCheck(value, 5) {
			position.AddAlarm(AlarmGpsAntennaCut)
		}
		if bitCheck(value, 4) || bitCheck(value, 9) || bitCheck(value, 10) || bitCheck(value, 11) {
			position.AddAlarm(AlarmFault)
		}
		if bitCheck(value, 7) || bitCheck(value, 18) {
			position.AddAlarm(AlarmLowBattery)
		}
		if bitCheck(value, 8) {
			position.AddAlarm(AlarmPowerOff)
		}
		if bitCheck(value, 15) {
			position.AddAlarm(AlarmVibration)
		}
		if bitCheck(value, 16) || bitCheck(value, 17) {
			position.AddAlarm(AlarmTampering)
		}
		if bitCheck(value, 20) {
			position.AddAlarm(AlarmGeofence)
		}
		if bitCheck(value, 28) {
			position.AddAlarm(AlarmMovement)
		}
		if (bitCheck(value, 29) || bitCheck(value, 30)) && model != "VL300" {
			position.AddAlarm(AlarmAccident)
		}
	}
}

// Decode interprets one framed message. Acknowledgements are written
// to conn before any positions are returned, so the device always
// sees its ack first.
func (d *HuabaoProtocolDecoder) Decode(conn Connection, remote net.Addr, frame []byte) ([]*Position, error) {
	if len(frame) == 0 {
		return nil, nil
	}

	if frame[0] == '(' {
		return d.decodeText(conn, remote, string(frame))
	}

	if len(frame) < 13 {
		return nil, nil
	}

	// verify before interpreting; field devices do emit bad sums
	if sum := xorChecksum(frame[1 : len(frame)-2]); sum != frame[len(frame)-2] {
		if !d.checksumWarned {
			Logger.Warn("bad checksum, dropping message", "protocol", d.protocol, "remote", remoteString(remote))
			d.checksumWarned = true
		}
		return nil, ErrBadChecksum
	}

	r := newFrameReader(frame)
	d.delimiter = r.ReadU8()
	msgType := r.ReadU16()
	attribute := r.ReadU16()
	idLen := 6
	if d.alternative() {
		idLen = 7
	}
	id := r.ReadBytes(idLen)

	var index uint16
	if msgType == msgLocationReport2 || msgType == msgLocationReportBlind {
		index = uint16(r.ReadU8())
	} else {
		index = r.ReadU16()
	}

	session, err := d.sessions.Session(conn, remote, decodeID(id))
	if err != nil {
		Logger.Debug("message from unknown device", "protocol", d.protocol, "id", decodeID(id))
		return nil, nil
	}
	if !session.Contains(KeyTimezone) {
		if loc := d.config.ProtocolTimezone(d.protocol); loc != nil {
			session.Set(KeyTimezone, loc)
		}
	}

	switch msgType {

	case msgTerminalRegister:
		body := make([]byte, 0, 3+len(id)*2)
		body = binary.BigEndian.AppendUint16(body, index)
		body = append(body, resultSuccess)
		body = append(body, decodeID(id)...)
		d.sendResponse(conn, msgTerminalRegisterResponse, id, false, body)
		return nil, nil

	case msgReportTextMessage:
		d.sendGeneralResponse(conn, id, msgType, index)
		position := NewPosition(d.protocol)
		position.DeviceID = session.DeviceID
		session.LastLocation(position, time.Time{})
		r.Skip(1) // encoding
		position.Set(KeyResult, decodeGbk(r.ReadBytes(r.Remaining()-2)))
		return []*Position{position}, nil

	case msgTerminalAuth, msgHeartbeat, msgHeartbeat2, msgPhoto:
		d.sendGeneralResponse(conn, id, msgType, index)
		return nil, nil

	case msgLocationReport:
		d.sendGeneralResponse(conn, id, msgType, index)
		position, err := d.decodeLocation(session, r)
		if err != nil {
			return nil, err
		}
		return []*Position{position}, nil

	case msgLocationReport2, msgLocationReportBlind:
		if bitCheck(uint64(attribute), 15) {
			d.sendGeneralResponse2(conn, id, msgType)
		}
		position, err := d.decodeLocation2(session, r, msgType)
		if err != nil {
			return nil, err
		}
		return []*Position{position}, nil

	case msgLocationBatch, msgLocationBatch2:
		d.sendGeneralResponse(conn, id, msgType, index)
		return d.decodeLocationBatch(session, r, msgType)

	case msgTimeSyncRequest:
		// The deployed platform answers time sync with the register
		// response type code, not 0x8109, and devices depend on it.
		now := time.Now().UTC()
		body := make([]byte, 0, 7)
		body = binary.BigEndian.AppendUint16(body, uint16(now.Year()))
		body = append(body, byte(now.Month()), byte(now.Day()),
			byte(now.Hour()), byte(now.Minute()), byte(now.Second()))
		d.sendResponse(conn, msgTerminalRegisterResponse, id, false, body)
		return nil, nil

	case msgAcceleration:
		position := NewPosition(d.protocol)
		position.DeviceID = session.DeviceID
		session.LastLocation(position, time.Time{})
		var data strings.Builder
		data.WriteByte('[')
		for r.Remaining() > 2 {
			r.Skip(6) // time
			if data.Len() > 1 {
				data.WriteByte(',')
			}
			data.WriteString("[" + strconv.Itoa(r.readSignedMagnitude()) +
				"," + strconv.Itoa(r.readSignedMagnitude()) +
				"," + strconv.Itoa(r.readSignedMagnitude()) + "]")
		}
		data.WriteByte(']')
		position.Set(KeyGSensor, data.String())
		return []*Position{position}, nil

	case msgTransparent:
		d.sendGeneralResponse(conn, id, msgType, index)
		position, err := d.decodeTransparent(session, r)
		if err != nil || position == nil {
			return nil, err
		}
		return []*Position{position}, nil

	case msgCommandResponse:
		position := NewPosition(d.protocol)
		position.DeviceID = session.DeviceID
		session.LastLocation(position, time.Time{})
		position.Set(KeyResult, r.ReadString(int(r.ReadU32())))
		return []*Position{position}, nil
	}

	Logger.Debug("unhandled message type", "protocol", d.protocol, "type", msgType)
	return nil, nil
}

// decodeText handles the '(' ... ')' text sentences a few firmware
// builds emit alongside the binary protocol.
func (d *HuabaoProtocolDecoder) decodeText(conn Connection, remote net.Addr, sentence string) ([]*Position, error) {
	if strings.Contains(sentence, "BASE,2") {
		// time sync request: echo with TIME replaced by current UTC
		response := strings.Replace(sentence, "TIME", time.Now().UTC().Format("20060102150405"), 1)
		if conn != nil {
			if err := conn.WriteMessage([]byte(response)); err != nil {
				Logger.Debug("time sync write failed", "protocol", d.protocol, "error", err)
			}
		}
		return nil, nil
	}

	session, err := d.sessions.Session(conn, remote)
	if err != nil {
		return nil, nil
	}
	position := NewPosition(d.protocol)
	position.DeviceID = session.DeviceID
	session.LastLocation(position, time.Time{})
	position.Set(KeyResult, sentence)
	return []*Position{position}, nil
}

func decodeGbk(data []byte) string {
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
