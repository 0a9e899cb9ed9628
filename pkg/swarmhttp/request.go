// Request representation for swarm object operations. A Request is created once
// per logical call and mutated in place while the call is redirected between
// nodes, so headers set by the caller survive every hop.
package swarmhttp

import (
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// Method is an HTTP verb understood by a swarm node.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodHead   Method = http.MethodHead
	MethodPost   Method = http.MethodPost
	MethodDelete Method = http.MethodDelete
	MethodCopy   Method = "COPY"
	// MethodAppend appends the request body to an existing object.
	MethodAppend Method = "APPEND"
)

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodHead, MethodPost, MethodDelete, MethodCopy, MethodAppend:
		return true
	}
	return false
}

// HasBody reports whether requests with this method carry a body.
func (m Method) HasBody() bool {
	return m == MethodPost || m == MethodAppend
}

// Credentials used to answer a digest challenge.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether no username was supplied.
func (c Credentials) Empty() bool {
	return c.Username == ""
}

type Request struct {
	Method Method
	Header http.Header
	Body   []byte

	uri  *url.URL
	path string
}

// NewRequest returns a Request for method against rawURL, which must be an
// absolute URL.
func NewRequest(method Method, rawURL string, body []byte) (*Request, error) {
	if !method.Valid() {
		return nil, errors.Wrapf(ErrInvalidArgument, "unsupported method %q", method)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "parse %q: %v", rawURL, err)
	}

	r := &Request{
		Method: method,
		Header: http.Header{},
		Body:   body,
	}
	if err := r.SetURI(u); err != nil {
		return nil, err
	}
	return r, nil
}

// URI returns a copy of the current target.
func (r *Request) URI() *url.URL {
	u := *r.uri
	return &u
}

// Path returns the request target as sent on the request line (path and query).
func (r *Request) Path() string {
	return r.path
}

// SetURI points the request at u. All headers are kept; a Host header, if one
// was set, is rewritten to match the new target.
func (r *Request) SetURI(u *url.URL) error {
	if u == nil || !u.IsAbs() || u.Hostname() == "" {
		return errors.Wrapf(ErrInvalidArgument, "not an absolute URI: %v", u)
	}

	dup := *u
	if u.User != nil {
		user := *u.User
		dup.User = &user
	}
	r.uri = &dup
	r.path = dup.RequestURI()

	if r.Header.Get("Host") != "" {
		r.Header.Set("Host", hostHeader(&dup))
	}
	return nil
}

// SetCredentials records the credentials as user-info on the target URI.
func (r *Request) SetCredentials(creds Credentials) {
	r.uri.User = url.UserPassword(creds.Username, creds.Password)
}

// Addr returns the host:port to dial for the current target.
func (r *Request) Addr() string {
	return net.JoinHostPort(r.uri.Hostname(), strconv.Itoa(port(r.uri)))
}

func hostHeader(u *url.URL) string {
	host := u.Hostname()
	if p := port(u); p != defaultPort(u.Scheme) {
		host = net.JoinHostPort(host, strconv.Itoa(p))
	}
	return host
}

func port(u *url.URL) int {
	if p, err := strconv.Atoi(u.Port()); err == nil {
		return p
	}
	return defaultPort(u.Scheme)
}

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}
