// Package client implements the terminal chat client's connection handling,
// command parsing and message rendering.
package client

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/chatterd/chatterd/pkg/protocol"
)

// Client is one connection to a chat server. Reads and writes may happen on
// different goroutines (one receiver, one sender), matching how the terminal
// client runs; neither side is otherwise synchronized.
type Client struct {
	conn net.Conn
	br   *bufio.Reader
}

// Dial connects to a chat server.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, br: bufio.NewReader(conn)}, nil
}

// Welcome reads the server's opening system notice.
func (c *Client) Welcome() (*protocol.ServerMessage, error) {
	payload, err := protocol.ReadFrame(c.br)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeServerMessage(payload)
}

// Authenticate sends the login/register request and returns the verdict.
func (c *Client) Authenticate(action, username, password string) (*protocol.AuthResponse, error) {
	req := &protocol.AuthRequest{Action: action, Username: username, Password: password}
	if err := protocol.WriteFrame(c.conn, req); err != nil {
		return nil, err
	}
	payload, err := protocol.ReadFrame(c.br)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeAuthResponse(payload)
}

// Send writes one client frame.
func (c *Client) Send(msg *protocol.ClientMessage) error {
	return protocol.WriteFrame(c.conn, msg)
}

// Receive reads the next server frame. Blocks until a frame arrives or the
// connection ends.
func (c *Client) Receive() (*protocol.ServerMessage, error) {
	payload, err := protocol.ReadFrame(c.br)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeServerMessage(payload)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Render formats a server frame the way the terminal client prints it.
func Render(msg *protocol.ServerMessage) string {
	switch msg.Type {
	case protocol.TypeSystem:
		return fmt.Sprintf("[SYSTEM] %s", msg.Text)
	case protocol.TypeBroadcast:
		return fmt.Sprintf("[%s] %s", msg.From, msg.Text)
	case protocol.TypePrivate:
		return fmt.Sprintf("[PRIVATE from %s] %s", msg.From, msg.Text)
	case protocol.TypeList:
		return "[USERS] " + strings.Join(msg.Users, ", ")
	default:
		return fmt.Sprintf("[UNKNOWN] %+v", msg)
	}
}
