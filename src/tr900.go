package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	TR900 text protocol decoder.
 *
 * Description:	Line-oriented sentences of the form
 *
 *		  >id,period,fix,yymmdd,hhmmss,Edddmm.mmmm,Nddmm.mmmm,
 *		  cmd,speed,course,gsm,event,adc-battery,impulses,
 *		  input,status
 *
 *		Longitude comes before latitude. Speed is reported in
 *		knots already.
 *
 *---------------------------------------------------------------*/

import (
	"net"
	"regexp"
)

var tr900Pattern = regexp.MustCompile(
	`^>(\d+),` + // id
		`\d+,` + // period
		`(\d),` + // fix
		`(\d{2})(\d{2})(\d{2}),` + // date (yymmdd)
		`(\d{2})(\d{2})(\d{2}),` + // time (hhmmss)
		`([EW])(\d{3})(\d{2}\.\d+),` + // longitude
		`([NS])(\d{2})(\d{2}\.\d+),` + // latitude
		`[^,]*,` + // command
		`(\d+\.?\d*),` + // speed
		`(\d+\.?\d*),` + // course
		`(\d+),` + // gsm
		`(\d+),` + // event
		`(\d+)-` + // adc
		`(\d+),` + // battery
		`\d+,` + // impulses
		`(\d+),` + // input
		`(\d+)`) // status

type Tr900ProtocolDecoder struct {
	protocol string
	config   *Config
	sessions *SessionRegistry
}

func NewTr900ProtocolDecoder(config *Config, sessions *SessionRegistry) *Tr900ProtocolDecoder {
	return &Tr900ProtocolDecoder{protocol: "tr900", config: config, sessions: sessions}
}

func (d *Tr900ProtocolDecoder) Decode(conn Connection, remote net.Addr, frame []byte) ([]*Position, error) {
	m := matchPattern(tr900Pattern, string(frame))
	if m == nil {
		return nil, nil
	}

	session, err := d.sessions.Session(conn, remote, m.Next())
	if err != nil {
		return nil, nil
	}

	position := NewPosition(d.protocol)
	position.DeviceID = session.DeviceID

	position.Valid = m.NextInt() == 1
	position.SetTime(m.NextDateTime(d.config.ProtocolTimezone(d.protocol)))

	lon := m.NextHemisphereCoordinate()
	lat := m.NextHemisphereCoordinate()
	if err := position.SetLongitudeWgs84(lon); err != nil {
		return nil, err
	}
	if err := position.SetLatitudeWgs84(lat); err != nil {
		return nil, err
	}

	position.Speed = m.NextFloat()
	position.Course = m.NextFloat()

	position.Set(KeyRssi, m.NextFloat())
	position.Set(KeyEvent, m.NextInt())
	position.Set(PrefixAdc+"1", m.NextInt())
	position.Set(KeyBattery, m.NextInt())
	position.Set(KeyInput, m.Next())
	position.Set(KeyStatus, m.Next())

	return []*Position{position}, nil
}
