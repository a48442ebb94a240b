package v1

// Subprotocol is the WebSocket subprotocol carrying binary v1 messages.
const Subprotocol = "webapp.session.v1"

// Variant keys (wire-stable).
const (
	VariantLoginSession = "LoginSession"
	VariantOk           = "Ok"
	VariantErr          = "Err"
)

// Session wraps exactly one opaque token.
// Equality and validity of a Session are those of its token.
type Session struct {
	Token string `cbor:"token"`
}

// NewSession wraps tok. It never fails.
func NewSession(tok string) Session { return Session{Token: tok} }

// Request is a client-to-server message. LoginSession is the only variant.
type Request interface {
	variant() string
}

// LoginSession asks the server to authenticate the client with Session.
type LoginSession struct {
	Session Session
}

func (LoginSession) variant() string { return VariantLoginSession }

// Response is the server's answer to a LoginSession: either a confirmed
// Session or a failure message. There is no third state.
type Response struct {
	ok      bool
	session Session
	message string
}

// OK builds a success response carrying the confirmed session.
func OK(s Session) Response { return Response{ok: true, session: s} }

// Failure builds a failure response. msg must not carry internal detail.
func Failure(msg string) Response { return Response{message: msg} }

// Session returns the confirmed session and true on success.
func (r Response) Session() (Session, bool) { return r.session, r.ok }

// OK reports whether the response is a success.
func (r Response) OK() bool { return r.ok }

// Message returns the failure message (empty on success).
func (r Response) Message() string { return r.message }

// Failure messages servers send in Err responses. They never carry the cause.
const (
	MsgLoginFailed     = "login failed"
	MsgInvalidRequest  = "invalid request"
	MsgTooManyAttempts = "too many attempts"
)
