package client

import (
	"errors"
	"net/netip"
	"time"

	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/net"
	"github.com/lcx/pokernet/protocol"
)

// Machine drives one connection attempt. Each Process call does the I/O of the
// current state, bounded by the poll timeout, and then applies transition.
// A Machine belongs to one goroutine.
type Machine struct {
	cc    *ConnectionContext
	state State
	cb    Callback
	err   error

	sender   *net.Sender
	receiver *net.Receiver
	resolver *net.ResolverTask
	lookup   net.LookupFunc

	pollTimeout   time.Duration
	resolverGrace time.Duration

	players map[uint32]string
}

// NewMachine creates a machine in Init for cc.
func NewMachine(cc *ConnectionContext, cb Callback, opts ...Option) *Machine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if cb == nil {
		cb = NopCallback{}
	}
	return &Machine{
		cc:            cc,
		state:         StateInit,
		cb:            cb,
		sender:        net.NewSender(),
		receiver:      net.NewReceiver(),
		lookup:        o.lookup,
		pollTimeout:   o.pollTimeout,
		resolverGrace: o.resolverGrace,
		players:       make(map[uint32]string),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Context returns the connection context. Read it only from the owning goroutine.
func (m *Machine) Context() *ConnectionContext {
	return m.cc
}

// Err returns the fatal error, if one happened.
func (m *Machine) Err() error {
	return m.err
}

// Players returns a copy of the id to name map of the table.
func (m *Machine) Players() map[uint32]string {
	out := make(map[uint32]string, len(m.players))
	for id, name := range m.players {
		out[id] = name
	}
	return out
}

// Process runs one tick. A non-nil error is fatal and sticky: the attempt is
// over and later calls return the same error.
func (m *Machine) Process() (Status, error) {
	if m.err != nil {
		return StatusPending, m.err
	}

	ev, err := m.step()
	if err != nil {
		m.err = err
		log.Warn().Str("state", m.state.String()).Err(err).Msg("connection attempt failed")
		return StatusPending, err
	}

	next, status := transition(m.state, ev)
	if next != m.state {
		log.Debug().Str("from", m.state.String()).Str("to", next.String()).Str("status", status.String()).Msg("client state changed")
		m.state = next
	}
	return status, nil
}

func (m *Machine) step() (event, error) {
	switch m.state {
	case StateInit:
		return m.createSocket()
	case StateStartResolve:
		return m.startResolve()
	case StateResolving:
		return m.resolving()
	case StateStartConnect:
		return m.startConnect()
	case StateConnecting:
		return m.connecting()
	case StateStartSession:
		return m.startSession()
	case StateWaitSession:
		return m.waitSession()
	case StateWaitGame:
		return m.waitGame()
	case StateFinal:
		return m.final()
	}
	return evNone, &net.Error{Code: protocol.ErrNetInvalidState}
}

func (m *Machine) createSocket() (event, error) {
	if m.cc.ServerAddr == "" {
		return evNone, &net.Error{Code: protocol.ErrSockServerAddrNotSet}
	}
	sock, err := net.NewSocket(m.cc.Family)
	if err != nil {
		return evNone, err
	}
	m.cc.Socket = sock
	return evSocketCreated, nil
}

func (m *Machine) startResolve() (event, error) {
	if m.cc.ServerPort == 0 {
		return evNone, &net.Error{Code: protocol.ErrSockInvalidPort}
	}
	addr, numeric, err := net.ParseNumeric(m.cc.ServerAddr, m.cc.Family)
	if err != nil {
		return evNone, err
	}
	if numeric {
		m.cc.Remote = netip.AddrPortFrom(addr, m.cc.ServerPort)
		return evNumericAddr, nil
	}

	m.abandonResolver()
	m.resolver = net.StartResolve(m.cc.ServerAddr, m.cc.Family, m.lookup)
	log.Debug().Str("host", m.cc.ServerAddr).Str("family", m.cc.Family.String()).Msg("resolving server address")
	return evResolveStarted, nil
}

func (m *Machine) resolving() (event, error) {
	switch m.resolver.Join(m.pollTimeout) {
	case net.ResolveRunning:
		return evNone, nil
	case net.ResolveFailed:
		_, err := m.resolver.Result()
		m.resolver = nil
		return evNone, err
	}
	addr, err := m.resolver.Result()
	m.resolver = nil
	if err != nil {
		return evNone, err
	}
	m.cc.Remote = netip.AddrPortFrom(addr, m.cc.ServerPort)
	return evResolved, nil
}

func (m *Machine) startConnect() (event, error) {
	err := net.Connect(m.cc.Socket, m.cc.Remote)
	switch {
	case err == nil:
		return evConnected, nil
	case errors.Is(err, net.ErrWouldBlock):
		return evConnectPending, nil
	}
	return evNone, err
}

func (m *Machine) connecting() (event, error) {
	writable, err := net.PollWritable(m.cc.Socket, m.pollTimeout)
	if err != nil {
		return evNone, err
	}
	if !writable {
		return evNone, nil
	}
	if err := net.ConnectResult(m.cc.Socket); err != nil {
		return evNone, err
	}
	return evConnected, nil
}

func (m *Machine) startSession() (event, error) {
	join := &protocol.JoinGame{
		Password:   m.cc.Password,
		PlayerName: m.cc.PlayerName,
		PlayerType: m.cc.PlayerType,
	}
	if err := m.sender.Send(m.cc.Socket, join); err != nil {
		return evNone, connErr(err, protocol.ErrSockSendFailed)
	}
	return evJoinSent, nil
}

func (m *Machine) waitSession() (event, error) {
	pkt, err := m.recv()
	if err != nil || pkt == nil {
		return evNone, err
	}
	switch p := pkt.(type) {
	case *protocol.JoinGameAck:
		m.cc.PlayerID = p.PlayerID
		m.cc.GameData = p.GameData
		m.players[p.PlayerID] = m.cc.PlayerName
		m.cb.PlayerJoined(m.cc.PlayerName)
		return evJoinAcked, nil
	case *protocol.Error:
		return evNone, &net.Error{Code: p.ErrorCode}
	}
	log.Debug().Str("kind", pkt.Kind().String()).Msg("ignoring packet before join ack")
	return evNone, nil
}

func (m *Machine) waitGame() (event, error) {
	pkt, err := m.recv()
	if err != nil || pkt == nil {
		return evNone, err
	}
	if handled, err := m.tableEvent(pkt); handled {
		return evNone, err
	}
	if p, ok := pkt.(*protocol.GameStart); ok {
		m.cb.InGamePacket(p)
		return evGameStarted, nil
	}
	return evNone, nil
}

func (m *Machine) final() (event, error) {
	pkt, err := m.recv()
	if err != nil || pkt == nil {
		return evNone, err
	}
	if handled, err := m.tableEvent(pkt); handled {
		return evNone, err
	}
	m.cb.InGamePacket(pkt)
	return evNone, nil
}

// tableEvent handles packets meaningful in every joined state.
func (m *Machine) tableEvent(pkt protocol.Packet) (bool, error) {
	switch p := pkt.(type) {
	case *protocol.PlayerJoined:
		m.players[p.PlayerID] = p.PlayerName
		m.cb.PlayerJoined(p.PlayerName)
		return true, nil
	case *protocol.PlayerLeft:
		name, ok := m.players[p.PlayerID]
		if !ok {
			return true, nil
		}
		delete(m.players, p.PlayerID)
		m.cb.PlayerLeft(name)
		return true, nil
	case *protocol.Error:
		return true, &net.Error{Code: p.ErrorCode}
	}
	return false, nil
}

func (m *Machine) recv() (protocol.Packet, error) {
	if err := m.sender.Flush(m.cc.Socket); err != nil {
		return nil, connErr(err, protocol.ErrSockSendFailed)
	}
	pkt, err := m.receiver.Recv(m.cc.Socket, m.pollTimeout)
	if err != nil {
		return nil, connErr(err, protocol.ErrSockRecvFailed)
	}
	return pkt, nil
}

// connErr turns transport errors into coded errors.
func connErr(err error, code protocol.ErrorCode) error {
	if errors.Is(err, net.ErrConnectionClosed) {
		return &net.Error{Code: protocol.ErrSockConnReset, Err: err}
	}
	var ne *net.Error
	if errors.As(err, &ne) {
		return err
	}
	return &net.Error{Code: code, Err: err}
}

func (m *Machine) abandonResolver() {
	if m.resolver == nil {
		return
	}
	if !m.resolver.Abandon(m.resolverGrace) {
		log.Debug().Dur("grace", m.resolverGrace).Msg("resolver still running after grace, discarding it")
	}
	m.resolver = nil
}

// Close abandons any running resolver and releases the socket.
func (m *Machine) Close() error {
	m.abandonResolver()
	sock := m.cc.Socket
	if !sock.Valid() {
		return nil
	}
	m.sender.Remove(sock)
	m.receiver.Remove(sock)
	m.cc.Socket = net.InvalidSocket
	return net.Close(sock)
}
