package protocol

import "fmt"

// ErrorCode is the numeric error space shared by local connection failures and
// errors reported by the server in an Error packet.
type ErrorCode uint32

// Local socket errors.
const (
	ErrNone ErrorCode = iota
	ErrSockServerAddrNotSet
	ErrSockInvalidPort
	ErrSockCreationFailed
	ErrSockSetPortFailed
	ErrSockInvalidAddrFamily
	ErrSockResolveFailed
	ErrSockConnectFailed
	ErrSockSelectFailed
	ErrSockConnReset
	ErrSockSendFailed
	ErrSockRecvFailed
)

// Errors reported by the server.
const (
	ErrNetWrongPassword ErrorCode = iota + 100
	ErrNetServerFull
	ErrNetGameAlreadyRunning
	ErrNetPlayerNameInUse
	ErrNetInvalidPlayerName
	ErrNetInvalidPacket
	ErrNetInvalidState
	ErrNetSessionTimedOut
	ErrNetTooManyPackets
	ErrNetInternal
)

var _codeNames = map[ErrorCode]string{
	ErrNone:                  "none",
	ErrSockServerAddrNotSet:  "server address not set",
	ErrSockInvalidPort:       "invalid port",
	ErrSockCreationFailed:    "socket creation failed",
	ErrSockSetPortFailed:     "set port failed",
	ErrSockInvalidAddrFamily: "invalid address family",
	ErrSockResolveFailed:     "resolve failed",
	ErrSockConnectFailed:     "connect failed",
	ErrSockSelectFailed:      "select failed",
	ErrSockConnReset:         "connection reset",
	ErrSockSendFailed:        "send failed",
	ErrSockRecvFailed:        "receive failed",
	ErrNetWrongPassword:      "wrong password",
	ErrNetServerFull:         "server full",
	ErrNetGameAlreadyRunning: "game already running",
	ErrNetPlayerNameInUse:    "player name in use",
	ErrNetInvalidPlayerName:  "invalid player name",
	ErrNetInvalidPacket:      "invalid packet",
	ErrNetInvalidState:       "invalid state",
	ErrNetSessionTimedOut:    "session timed out",
	ErrNetTooManyPackets:     "too many packets",
	ErrNetInternal:           "internal server error",
}

func (c ErrorCode) String() string {
	if s, ok := _codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("error code %d", uint32(c))
}
