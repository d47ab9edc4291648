package client

import "fmt"

// State is the position of a connection attempt.
type State int32

const (
	StateInit State = iota
	StateStartResolve
	StateResolving
	StateStartConnect
	StateConnecting
	StateStartSession
	StateWaitSession
	StateWaitGame
	StateFinal
)

var _stateNames = [...]string{
	StateInit:         "Init",
	StateStartResolve: "StartResolve",
	StateResolving:    "Resolving",
	StateStartConnect: "StartConnect",
	StateConnecting:   "Connecting",
	StateStartSession: "StartSession",
	StateWaitSession:  "WaitSession",
	StateWaitGame:     "WaitGame",
	StateFinal:        "Final",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(_stateNames) {
		return _stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Status is what one Process call reports upward. Pending means "call again".
type Status int

const (
	StatusPending Status = iota
	StatusInitDone
	StatusResolveDone
	StatusConnectDone
	StatusSessionDone
	StatusGameStart
)

var _statusNames = [...]string{
	StatusPending:     "Pending",
	StatusInitDone:    "InitDone",
	StatusResolveDone: "ResolveDone",
	StatusConnectDone: "ConnectDone",
	StatusSessionDone: "SessionDone",
	StatusGameStart:   "GameStart",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(_statusNames) {
		return _statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// event is the outcome of the I/O step of one state.
type event int

const (
	evNone event = iota
	evSocketCreated
	evNumericAddr
	evResolveStarted
	evResolved
	evConnectPending
	evConnected
	evJoinSent
	evJoinAcked
	evGameStarted
)

type edge struct {
	from State
	ev   event
}

type target struct {
	to     State
	status Status
}

var _transitions = map[edge]target{
	{StateInit, evSocketCreated}:          {StateStartResolve, StatusInitDone},
	{StateStartResolve, evNumericAddr}:    {StateStartConnect, StatusResolveDone},
	{StateStartResolve, evResolveStarted}: {StateResolving, StatusPending},
	{StateResolving, evResolved}:          {StateStartConnect, StatusResolveDone},
	{StateStartConnect, evConnected}:      {StateStartSession, StatusConnectDone},
	{StateStartConnect, evConnectPending}: {StateConnecting, StatusPending},
	{StateConnecting, evConnected}:        {StateStartSession, StatusConnectDone},
	{StateStartSession, evJoinSent}:       {StateWaitSession, StatusPending},
	{StateWaitSession, evJoinAcked}:       {StateWaitGame, StatusSessionDone},
	{StateWaitGame, evGameStarted}:        {StateFinal, StatusGameStart},
}

// transition is the whole state graph. Unlisted pairs keep the state and report Pending.
func transition(s State, ev event) (State, Status) {
	if t, ok := _transitions[edge{s, ev}]; ok {
		return t.to, t.status
	}
	return s, StatusPending
}
