package gate

import (
	"fmt"
)

// State is where a request ended up in the gate's decision machine.
type State int

const (
	Unchecked State = iota
	Whitelisted
	InboundTokenValid
	InboundTokenExpired
	InboundTokenInvalid
	SessionTokenValid
	SessionTokenMissingOrExpired
	Failed
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Whitelisted:
		return "whitelisted"
	case InboundTokenValid:
		return "inbound_token_valid"
	case InboundTokenExpired:
		return "inbound_token_expired"
	case InboundTokenInvalid:
		return "inbound_token_invalid"
	case SessionTokenValid:
		return "session_token_valid"
	case SessionTokenMissingOrExpired:
		return "session_token_missing_or_expired"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is what the gate does with the request.
type Outcome int

const (
	// Allow passes the request to the handler.
	Allow Outcome = iota
	// Reject answers 401 without redirecting.
	Reject
	// Redirect remembers the URL and sends the browser through logout and login.
	Redirect
	// Fail answers 500.
	Fail
)

func (s State) Outcome() Outcome {
	switch s {
	case Whitelisted, InboundTokenValid, SessionTokenValid:
		return Allow
	case InboundTokenExpired, InboundTokenInvalid:
		return Reject
	case SessionTokenMissingOrExpired:
		return Redirect
	default:
		return Fail
	}
}

// Decision is the result of checking one request.
type Decision struct {
	State State
	// Auth is set when the outcome is Allow and the request is not whitelisted.
	Auth *AuthContext
	// Err holds the cause for rejected, redirected and failed requests.
	Err error
}
