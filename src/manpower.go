package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	ManPower text protocol decoder.
 *
 * Description:	Semicolon-terminated sentences beginning with
 *		"simei:", carrying the IMEI, a status word and a
 *		GPRMC-like fix block. The longitude hemisphere letter
 *		is optional and defaults to east.
 *
 *---------------------------------------------------------------*/

import (
	"net"
	"regexp"
)

var manPowerPattern = regexp.MustCompile(
	`^simei:(\d+),` + // imei
		`[^,]*,[^,]*,` +
		`([^,]*),` + // status
		`\d+,\d+,\d+\.?\d*,` +
		`(\d{2})(\d{2})(\d{2})` + // date (yymmdd)
		`(\d{2})(\d{2})(\d{2}),` + // time (hhmmss)
		`([AV]),` + // validity
		`(\d{2})(\d{2}\.\d{4}),` + // latitude
		`([NS]),` +
		`(\d{3})(\d{2}\.\d{4}),` + // longitude
		`([EW])?,` +
		`(\d+\.?\d*),`) // speed

type ManPowerProtocolDecoder struct {
	protocol string
	config   *Config
	sessions *SessionRegistry
}

func NewManPowerProtocolDecoder(config *Config, sessions *SessionRegistry) *ManPowerProtocolDecoder {
	return &ManPowerProtocolDecoder{protocol: "manpower", config: config, sessions: sessions}
}

func (d *ManPowerProtocolDecoder) Decode(conn Connection, remote net.Addr, frame []byte) ([]*Position, error) {
	m := matchPattern(manPowerPattern, string(frame))
	if m == nil {
		return nil, nil
	}

	session, err := d.sessions.Session(conn, remote, m.Next())
	if err != nil {
		return nil, nil
	}

	position := NewPosition(d.protocol)
	position.DeviceID = session.DeviceID

	position.Set(KeyStatus, m.Next())
	position.SetTime(m.NextDateTime(d.config.ProtocolTimezone(d.protocol)))
	position.Valid = m.Next() == "A"

	lat := m.NextCoordinateHemisphere()
	lon := m.NextCoordinateHemisphere()
	if err := position.SetLatitudeWgs84(lat); err != nil {
		return nil, err
	}
	if err := position.SetLongitudeWgs84(lon); err != nil {
		return nil, err
	}
	position.Speed = m.NextFloat()

	return []*Position{position}, nil
}
