package protocol

// Client-to-server message types.
const (
	TypeMessage = "message"
	TypePrivate = "private"
	TypeList    = "list"
	TypeQuit    = "quit"
)

// Server-to-client message types. TypePrivate and TypeList are shared with
// the client direction.
const (
	TypeSystem    = "system"
	TypeBroadcast = "broadcast"
)

// Auth handshake actions and statuses.
const (
	ActionLogin    = "login"
	ActionRegister = "register"

	StatusOK    = "ok"
	StatusError = "error"
)

// ClientMessage is a frame sent by an authenticated client, tagged by Type.
type ClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	To   string `json:"to,omitempty"`
}

// ServerMessage is a frame sent by the server to a client, tagged by Type.
type ServerMessage struct {
	Type  string   `json:"type"`
	From  string   `json:"from,omitempty"`
	Text  string   `json:"text,omitempty"`
	Users []string `json:"users,omitempty"`
}

// AuthRequest is the first frame a client sends after the welcome notice.
// It is not tagged by a type field; its position in the handshake identifies it.
type AuthRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the server's reply to an AuthRequest.
type AuthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SystemNotice builds a system frame carrying text for one client.
func SystemNotice(text string) *ServerMessage {
	return &ServerMessage{Type: TypeSystem, Text: text}
}

// BroadcastEvent builds a broadcast frame from a sender label.
func BroadcastEvent(from, text string) *ServerMessage {
	return &ServerMessage{Type: TypeBroadcast, From: from, Text: text}
}

// PrivateEvent builds a private-message frame from a sender label.
func PrivateEvent(from, text string) *ServerMessage {
	return &ServerMessage{Type: TypePrivate, From: from, Text: text}
}

// UserList builds a list frame carrying the online usernames.
func UserList(users []string) *ServerMessage {
	return &ServerMessage{Type: TypeList, Users: users}
}

// DecodeClientMessage parses a client frame payload.
func DecodeClientMessage(payload []byte) (*ClientMessage, error) {
	msg := &ClientMessage{}
	if err := decode(payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeServerMessage parses a server frame payload.
func DecodeServerMessage(payload []byte) (*ServerMessage, error) {
	msg := &ServerMessage{}
	if err := decode(payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeAuthRequest parses an auth request payload.
func DecodeAuthRequest(payload []byte) (*AuthRequest, error) {
	req := &AuthRequest{}
	if err := decode(payload, req); err != nil {
		return nil, err
	}
	return req, nil
}

// DecodeAuthResponse parses an auth response payload.
func DecodeAuthResponse(payload []byte) (*AuthResponse, error) {
	resp := &AuthResponse{}
	if err := decode(payload, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
