package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Device-session registry.
 *
 * Description:	Maps transport endpoints to logical devices. A device
 *		identifies itself once (IMEI, TID, phone number) and
 *		the binding lets later messages on the same connection
 *		resolve without repeating the identifier. Sessions
 *		survive reconnects: the same unique id picks up the
 *		same internal device id and cached state.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"net"
	"sync"
	"time"
)

// ErrUnknownDevice is returned when a device reports a unique id the
// directory does not know and auto-registration is off. The message
// is dropped and no acknowledgement is sent; the device will time
// out and re-register.
var ErrUnknownDevice = errors.New("unknown device")

// KeyTimezone is the only session attribute the decoders themselves
// consume. Other entries are free-form scratch state.
const KeyTimezone = "timezone"

// DeviceInfo is what the external device directory knows about a
// registered unit.
type DeviceInfo struct {
	ID         int64
	UniqueID   string
	Model      string
	Attributes map[string]string
}

// DeviceDirectory resolves device-reported unique ids to registered
// devices. Implemented outside the gateway; read-mostly.
type DeviceDirectory interface {
	Lookup(uniqueID string) (*DeviceInfo, error)
}

// DeviceSession is the per-device state cached by the gateway.
type DeviceSession struct {
	DeviceID int64
	UniqueID string
	Model    string

	mu           sync.Mutex
	attributes   map[string]any
	lastPosition *Position
	lastSeen     time.Time
	endpoint     Connection
}

// Endpoint returns the connection the device last identified itself
// on, or nil if it has not been heard from. Commands are written here.
func (s *DeviceSession) Endpoint() Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

func (s *DeviceSession) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[key] = value
}

func (s *DeviceSession) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attributes[key]
}

func (s *DeviceSession) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.attributes[key]
	return ok
}

// TimeZone returns the device's reporting zone, defaulting to
// GMT+08:00: the complex binary protocol here is overwhelmingly
// deployed on devices whose clocks run on China Standard Time.
func (s *DeviceSession) TimeZone() *time.Location {
	if loc, ok := s.Get(KeyTimezone).(*time.Location); ok {
		return loc
	}
	return time.FixedZone("GMT+08:00", 8*3600)
}

// RememberPosition stores the latest fix snapshot for LastLocation.
// Snapshot update and attribute writes share the session mutex so a
// reconnecting device cannot interleave half-updated state.
func (s *DeviceSession) RememberPosition(position *Position) {
	if position == nil || position.FixTime.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := *position
	s.lastPosition = &snapshot
}

// LastLocation fills position with the cached fix so that messages
// carrying no coordinates of their own (heartbeats, command results)
// still produce a plottable record. The copy is marked outdated and
// keeps only non-positional data from the current message.
func (s *DeviceSession) LastLocation(position *Position, deviceTime time.Time) {
	s.mu.Lock()
	last := s.lastPosition
	s.mu.Unlock()

	position.Outdated = true
	if deviceTime.IsZero() {
		position.DeviceTime = time.Now()
	} else {
		position.DeviceTime = deviceTime
	}
	if last == nil {
		return
	}
	position.FixTime = last.FixTime
	position.Valid = last.Valid
	// cached values were range-checked when the snapshot was taken
	_ = position.SetLatitude(last.Latitude())
	_ = position.SetLongitude(last.Longitude())
	position.Altitude = last.Altitude
	position.Speed = last.Speed
	position.Course = last.Course
	position.Accuracy = last.Accuracy
}

type endpointKey struct {
	connection Connection
	remote     string
}

// SessionRegistry is the process-wide endpoint-to-device mapping.
// Safe for concurrent use by every connection worker.
type SessionRegistry struct {
	directory    DeviceDirectory
	autoRegister bool

	mu         sync.Mutex
	nextID     int64
	byEndpoint map[endpointKey]*DeviceSession
	byUniqueID map[string]*DeviceSession
	byDeviceID map[int64]*DeviceSession
}

func NewSessionRegistry(directory DeviceDirectory, autoRegister bool) *SessionRegistry {
	return &SessionRegistry{
		directory:    directory,
		autoRegister: autoRegister,
		nextID:       1,
		byEndpoint:   make(map[endpointKey]*DeviceSession),
		byUniqueID:   make(map[string]*DeviceSession),
		byDeviceID:   make(map[int64]*DeviceSession),
	}
}

// Session resolves the device session for a transport endpoint. When
// uniqueIDs are given, the first one known to the directory (or
// auto-registered) wins and the endpoint is bound to it; with none,
// the existing binding is used.
func (r *SessionRegistry) Session(conn Connection, remote net.Addr, uniqueIDs ...string) (*DeviceSession, error) {
	key := endpointKey{connection: conn, remote: remoteString(remote)}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(uniqueIDs) == 0 {
		if session, ok := r.byEndpoint[key]; ok {
			session.lastSeen = time.Now()
			return session, nil
		}
		return nil, ErrUnknownDevice
	}

	for _, uniqueID := range uniqueIDs {
		session, err := r.resolveLocked(uniqueID)
		if err != nil {
			continue
		}
		session.lastSeen = time.Now()
		session.mu.Lock()
		session.endpoint = conn
		session.mu.Unlock()
		r.byEndpoint[key] = session
		return session, nil
	}
	return nil, ErrUnknownDevice
}

func (r *SessionRegistry) resolveLocked(uniqueID string) (*DeviceSession, error) {
	if session, ok := r.byUniqueID[uniqueID]; ok {
		return session, nil
	}

	var info *DeviceInfo
	if r.directory != nil {
		info, _ = r.directory.Lookup(uniqueID)
	}
	if info == nil {
		if !r.autoRegister {
			return nil, ErrUnknownDevice
		}
		info = &DeviceInfo{ID: r.nextID, UniqueID: uniqueID}
		r.nextID++
	} else if info.ID >= r.nextID {
		r.nextID = info.ID + 1
	}

	session := &DeviceSession{
		DeviceID:   info.ID,
		UniqueID:   uniqueID,
		Model:      info.Model,
		attributes: make(map[string]any),
	}
	if tz, ok := info.Attributes[KeyTimezone]; ok {
		if loc, err := parseTimezone(tz); err == nil {
			session.attributes[KeyTimezone] = loc
		}
	}
	r.byUniqueID[uniqueID] = session
	r.byDeviceID[info.ID] = session
	return session, nil
}

// ByDeviceID returns the session for an internal device id, if the
// device has identified itself since startup.
func (r *SessionRegistry) ByDeviceID(deviceID int64) *DeviceSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byDeviceID[deviceID]
}

// ReleaseEndpoint drops the endpoint binding when a connection
// closes. The session itself stays so the device resumes its state
// on reconnect.
func (r *SessionRegistry) ReleaseEndpoint(conn Connection, remote net.Addr) {
	key := endpointKey{connection: conn, remote: remoteString(remote)}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byEndpoint, key)
}

// ExpireIdle removes sessions that have not been heard from within
// maxIdle. Returns the number removed.
func (r *SessionRegistry) ExpireIdle(maxIdle time.Duration) int {
	deadline := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for uniqueID, session := range r.byUniqueID {
		if session.lastSeen.Before(deadline) {
			delete(r.byUniqueID, uniqueID)
			delete(r.byDeviceID, session.DeviceID)
			removed++
		}
	}
	// UDP endpoints are never released by a connection teardown, so
	// their bindings have to age out here as well.
	for key, session := range r.byEndpoint {
		if session.lastSeen.Before(deadline) {
			delete(r.byEndpoint, key)
		}
	}
	return removed
}

func remoteString(remote net.Addr) string {
	if remote == nil {
		return ""
	}
	return remote.String()
}
