package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Protocol servers: TCP, UDP and HTTP listeners feeding
 *		the decoders, plus the gateway that ties the pieces
 *		together.
 *
 * Description:	Each enabled protocol gets one listener. TCP gives
 *		every connection its own frame decoder and protocol
 *		decoder, since the Huabao framing is latched per
 *		connection. UDP keeps the same per-endpoint state in a
 *		map keyed by the remote address. Decoded positions are
 *		stamped, remembered for last-location fallback and
 *		queued to the pipeline after the acknowledgement has
 *		gone out.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Connection is the writable half of a transport endpoint as seen by
// the decoders. UDP connections are value types that compare equal
// for packets from the same remote, so they can key session state.
type Connection interface {
	WriteMessage(data []byte) error
	Close() error
}

type tcpConnection struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *tcpConnection) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write(data)
	return err
}

func (c *tcpConnection) Close() error {
	return c.conn.Close()
}

type udpConnection struct {
	pc   net.PacketConn
	addr string
}

func (c udpConnection) WriteMessage(data []byte) error {
	addr, err := net.ResolveUDPAddr("udp", c.addr)
	if err != nil {
		return err
	}
	_, err = c.pc.WriteTo(data, addr)
	return err
}

// Close is a no-op: the socket is shared by every remote.
func (c udpConnection) Close() error { return nil }

// FrameDecoder carves one message out of a raw byte stream. Decode
// returns the frame, the number of raw bytes consumed, and
// errNeedMoreData when the buffer holds no complete message yet.
type FrameDecoder interface {
	Decode(data []byte) ([]byte, int, error)
}

// ProtocolDecoder turns one frame into zero or more positions,
// writing any protocol acknowledgements to conn as a side effect.
type ProtocolDecoder interface {
	Decode(conn Connection, remote net.Addr, frame []byte) ([]*Position, error)
}

// Protocol describes how to run one protocol: which decoders to
// build per endpoint. Frame and protocol decoders are per-endpoint
// because framing and delimiter state latch on first contact.
type Protocol struct {
	Name            string
	NewFrameDecoder func() FrameDecoder
	NewDecoder      func() ProtocolDecoder
}

// Gateway owns the session registry, the pipeline and every protocol
// server.
type Gateway struct {
	config   *Config
	sessions *SessionRegistry
	pipeline *Pipeline

	mu        sync.Mutex
	listeners []net.Listener
	packets   []net.PacketConn
	httpSrvs  []*http.Server
	wg        sync.WaitGroup
	quit      chan struct{}
	closed    bool
}

func NewGateway(config *Config, directory DeviceDirectory, pipeline *Pipeline) *Gateway {
	return &Gateway{
		config:   config,
		sessions: NewSessionRegistry(directory, config.AutoRegister),
		pipeline: pipeline,
		quit:     make(chan struct{}),
	}
}

func (g *Gateway) Sessions() *SessionRegistry { return g.sessions }

// Protocols returns the gateway's protocol table, built against its
// own config and session registry.
func (g *Gateway) Protocols() map[string]Protocol {
	return map[string]Protocol{
		"huabao": {
			Name: "huabao",
			NewFrameDecoder: func() FrameDecoder {
				return NewHuabaoFrameDecoder()
			},
			NewDecoder: func() ProtocolDecoder {
				return NewHuabaoProtocolDecoder(g.config, g.sessions)
			},
		},
		"tr900": {
			Name: "tr900",
			NewFrameDecoder: func() FrameDecoder {
				return lineFrameDecoder{}
			},
			NewDecoder: func() ProtocolDecoder {
				return NewTr900ProtocolDecoder(g.config, g.sessions)
			},
		},
		"manpower": {
			Name: "manpower",
			NewFrameDecoder: func() FrameDecoder {
				return charFrameDecoder{delimiter: ';'}
			},
			NewDecoder: func() ProtocolDecoder {
				return NewManPowerProtocolDecoder(g.config, g.sessions)
			},
		},
	}
}

// Start opens a listener for every configured protocol and returns
// once they are all accepting.
func (g *Gateway) Start() error {
	protocols := g.Protocols()

	for name, pc := range g.config.Protocols {
		if pc.Port == 0 {
			continue
		}
		address := net.JoinHostPort("", strconv.Itoa(pc.Port))

		if name == "owntracks" || pc.Transport == "http" {
			if err := g.startHTTP(name, address); err != nil {
				return err
			}
			continue
		}

		protocol, ok := protocols[name]
		if !ok {
			return fmt.Errorf("unknown protocol %q", name)
		}

		var err error
		switch pc.Transport {
		case "", "tcp":
			err = g.startTCP(protocol, address)
		case "udp":
			err = g.startUDP(protocol, address)
		default:
			err = fmt.Errorf("unknown transport %q", pc.Transport)
		}
		if err != nil {
			return fmt.Errorf("protocol %s: %w", name, err)
		}
	}

	if expiry := time.Duration(g.config.SessionExpiry) * time.Second; expiry > 0 {
		g.wg.Add(1)
		go g.sweepSessions(expiry)
	}
	return nil
}

// sweepSessions drops registry entries for devices that went quiet.
// TCP sessions are usually released by the connection teardown; the
// sweep mostly catches UDP devices, which never disconnect.
func (g *Gateway) sweepSessions(expiry time.Duration) {
	defer g.wg.Done()
	ticker := time.NewTicker(expiry)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := g.sessions.ExpireIdle(expiry); removed > 0 {
				Logger.Debug("expired idle sessions", "count", removed)
			}
		case <-g.quit:
			return
		}
	}
}

func (g *Gateway) startTCP(protocol Protocol, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	Logger.Info("listening", "protocol", protocol.Name, "transport", "tcp", "address", listener.Addr())

	g.mu.Lock()
	g.listeners = append(g.listeners, listener)
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				if !g.isClosed() {
					Logger.Error("accept failed", "protocol", protocol.Name, "error", err)
				}
				return
			}
			g.wg.Add(1)
			go func() {
				defer g.wg.Done()
				g.serveTCP(protocol, conn)
			}()
		}
	}()
	return nil
}

func (g *Gateway) serveTCP(protocol Protocol, conn net.Conn) {
	remote := conn.RemoteAddr()
	Logger.Debug("connected", "protocol", protocol.Name, "remote", remote)

	connection := &tcpConnection{conn: conn}
	frameDecoder := protocol.NewFrameDecoder()
	decoder := protocol.NewDecoder()
	idleTimeout := g.config.IdleTimeout(protocol.Name)

	defer func() {
		g.sessions.ReleaseEndpoint(connection, remote)
		conn.Close()
		Logger.Debug("disconnected", "protocol", protocol.Name, "remote", remote)
	}()

	buffer := make([]byte, 0, 4096)
	chunk := make([]byte, 2048)

	for {
		if idleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(idleTimeout))
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)
			var fatal bool
			buffer, fatal = g.drainFrames(protocol, frameDecoder, decoder, connection, remote, buffer)
			if fatal {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// drainFrames decodes every complete frame in buffer and returns the
// unconsumed remainder. A decoder error discards only the offending
// message; the connection stays up.
func (g *Gateway) drainFrames(
	protocol Protocol, frameDecoder FrameDecoder, decoder ProtocolDecoder,
	connection Connection, remote net.Addr, buffer []byte) ([]byte, bool) {

	for {
		frame, consumed, err := frameDecoder.Decode(buffer)
		if errors.Is(err, errNeedMoreData) {
			// defend against a stream that never frames
			if len(buffer) > 64*1024 {
				Logger.Warn("oversized unframed buffer, dropping connection",
					"protocol", protocol.Name, "remote", remoteString(remote))
				return nil, true
			}
			return buffer, false
		}
		if err != nil {
			return nil, true
		}
		buffer = buffer[consumed:]

		positions, err := decoder.Decode(connection, remote, frame)
		if err != nil {
			Logger.Debug("discarding message", "protocol", protocol.Name,
				"remote", remoteString(remote), "error", err)
			Logger.Debug("rejected frame\n" + hexDump(frame))
			continue
		}
		g.publish(protocol.Name, connection, remote, positions)
	}
}

func (g *Gateway) startUDP(protocol Protocol, address string) error {
	pc, err := net.ListenPacket("udp", address)
	if err != nil {
		return err
	}
	Logger.Info("listening", "protocol", protocol.Name, "transport", "udp", "address", pc.LocalAddr())

	g.mu.Lock()
	g.packets = append(g.packets, pc)
	g.mu.Unlock()

	type endpointState struct {
		frameDecoder FrameDecoder
		decoder      ProtocolDecoder
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		endpoints := make(map[string]*endpointState)
		packet := make([]byte, 65536)

		for {
			n, remote, err := pc.ReadFrom(packet)
			if err != nil {
				if !g.isClosed() {
					Logger.Error("read failed", "protocol", protocol.Name, "error", err)
				}
				return
			}

			key := remote.String()
			state, ok := endpoints[key]
			if !ok {
				state = &endpointState{
					frameDecoder: protocol.NewFrameDecoder(),
					decoder:      protocol.NewDecoder(),
				}
				endpoints[key] = state
			}

			connection := udpConnection{pc: pc, addr: key}
			data := packet[:n]
			for len(data) > 0 {
				frame, consumed, err := state.frameDecoder.Decode(data)
				if err != nil {
					break // datagrams are not reassembled
				}
				data = data[consumed:]
				positions, err := state.decoder.Decode(connection, remote, frame)
				if err != nil {
					Logger.Debug("discarding message", "protocol", protocol.Name,
						"remote", key, "error", err)
					continue
				}
				g.publish(protocol.Name, connection, remote, positions)
			}
		}
	}()
	return nil
}

func (g *Gateway) startHTTP(name, address string) error {
	handler := NewOwnTracksProtocolDecoder(g.sessions, g.pipeline)

	mux := http.NewServeMux()
	mux.Handle("/", handler)

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("protocol %s: %w", name, err)
	}
	Logger.Info("listening", "protocol", name, "transport", "http", "address", listener.Addr())

	g.mu.Lock()
	g.httpSrvs = append(g.httpSrvs, server)
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Error("http server stopped", "protocol", name, "error", err)
		}
	}()
	return nil
}

// publish stamps, remembers and queues decoded positions. Called
// after the protocol acknowledgement has been written.
func (g *Gateway) publish(protocol string, conn Connection, remote net.Addr, positions []*Position) {
	if len(positions) == 0 {
		return
	}
	ignoreFixTime := g.config.Protocol(protocol).IgnoreFixTime

	for _, position := range positions {
		if position == nil {
			continue
		}
		if ignoreFixTime {
			position.FixTime = position.ServerTime
		}
		if session, err := g.sessions.Session(conn, remote); err == nil {
			if !position.Outdated {
				session.RememberPosition(position)
			}
		}
		if g.pipeline != nil {
			g.pipeline.Consume(position)
		}
	}
}

// SendCommand encodes and writes a command to the device's current
// connection. Only the Huabao protocol supports outbound commands.
func (g *Gateway) SendCommand(command *Command) error {
	session := g.sessions.ByDeviceID(command.DeviceID)
	if session == nil {
		return ErrUnknownDevice
	}
	conn := session.Endpoint()
	if conn == nil {
		return fmt.Errorf("device %d is not connected", command.DeviceID)
	}

	encoder := NewHuabaoProtocolEncoder(g.config, g.sessions)
	message, err := encoder.Encode(command)
	if err != nil {
		return err
	}
	return conn.WriteMessage(NewHuabaoFrameEncoder().Encode(message))
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Stop closes every listener and waits for the workers to drain.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.quit)
	}
	listeners := g.listeners
	packets := g.packets
	servers := g.httpSrvs
	g.mu.Unlock()

	for _, l := range listeners {
		l.Close()
	}
	for _, pc := range packets {
		pc.Close()
	}
	for _, s := range servers {
		s.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
