package server

import (
	"bufio"
	"net"

	"github.com/gorilla/websocket"

	"github.com/chatterd/chatterd/pkg/protocol"
)

// frameTransport abstracts one client connection as a sequence of message
// payloads. The TCP transport frames payloads itself; WebSocket already has
// message boundaries.
type frameTransport interface {
	ReadPayload() ([]byte, error)
	WritePayload(payload []byte) error
	Close() error
	RemoteAddr() string
}

type tcpTransport struct {
	conn net.Conn
	br   *bufio.Reader
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	return &tcpTransport{conn: conn, br: bufio.NewReader(conn)}
}

func (t *tcpTransport) ReadPayload() ([]byte, error) {
	return protocol.ReadFrame(t.br)
}

func (t *tcpTransport) WritePayload(payload []byte) error {
	return protocol.WriteRawFrame(t.conn, payload)
}

func (t *tcpTransport) Close() error { return t.conn.Close() }

func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

// wsTransport carries one JSON payload per WebSocket message. The 4-byte
// length prefix of the TCP framing is not used; WebSocket frames are
// self-delimiting.
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(protocol.MaxFrame)
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadPayload() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	return payload, err
}

func (t *wsTransport) WritePayload(payload []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) Close() error { return t.conn.Close() }

func (t *wsTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }
