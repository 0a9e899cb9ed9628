package swarmhttp

import (
	"bufio"
	"bytes"
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Conn is an open transport connection to a single node.
type Conn interface {
	// RoundTrip sends req and reads the complete response. Transport
	// failures are returned as they come from the network.
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

// Dialer opens connections to host:port addresses.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// NetDialer speaks HTTP/1.1 over plain TCP connections.
type NetDialer struct {
	// Timeout bounds connection establishment. Zero means no limit.
	Timeout time.Duration
}

func (d *NetDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &netConn{conn: c, br: bufio.NewReader(c)}, nil
}

type netConn struct {
	conn net.Conn
	br   *bufio.Reader
}

func (c *netConn) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	hreq, err := toHTTPRequest(req)
	if err != nil {
		return nil, err
	}
	if err := hreq.Write(c.conn); err != nil {
		return nil, err
	}

	hres, err := http.ReadResponse(c.br, hreq)
	if err != nil {
		return nil, err
	}
	defer hres.Body.Close()

	body, err := ioutil.ReadAll(hres.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: hres.StatusCode,
		Status:     hres.Status,
		Header:     hres.Header,
		Body:       body,
		Close:      hres.Close,
	}, nil
}

func (c *netConn) Close() error {
	return c.conn.Close()
}

func toHTTPRequest(req *Request) (*http.Request, error) {
	u := req.URI()
	// Credentials travel in the Authorization header only.
	u.User = nil

	hreq, err := http.NewRequest(string(req.Method), u.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, vs := range req.Header {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	if host := req.Header.Get("Host"); host != "" {
		hreq.Host = host
	}
	return hreq, nil
}

// ConnectionManager owns at most one open connection. It is not safe for
// concurrent use; each execution creates its own.
type ConnectionManager struct {
	dialer Dialer
	conn   Conn
	addr   string
}

func NewConnectionManager(dialer Dialer) *ConnectionManager {
	return &ConnectionManager{dialer: dialer}
}

// Connect opens a connection to addr. Any connection already open is closed
// first, so a connection never outlives a change of address.
func (m *ConnectionManager) Connect(ctx context.Context, addr string) error {
	if m.conn != nil {
		m.Disconnect()
	}
	conn, err := m.dialer.Dial(ctx, addr)
	if err != nil {
		return err
	}
	m.conn = conn
	m.addr = addr
	return nil
}

// Disconnect closes the open connection, if any.
func (m *ConnectionManager) Disconnect() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	m.addr = ""
	return err
}

func (m *ConnectionManager) Reconnect(ctx context.Context, addr string) error {
	m.Disconnect()
	return m.Connect(ctx, addr)
}

// Addr returns the address of the open connection, or "" when disconnected.
func (m *ConnectionManager) Addr() string {
	return m.addr
}

// Send performs one attempt over the open connection.
func (m *ConnectionManager) Send(ctx context.Context, req *Request) (*Response, error) {
	if m.conn == nil {
		return nil, errors.New("not connected")
	}
	return m.conn.RoundTrip(ctx, req)
}
