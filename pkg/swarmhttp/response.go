package swarmhttp

import (
	"net/http"
)

// Class groups response statuses by how the executor reacts to them.
type Class int

const (
	ClassOther Class = iota
	ClassSuccess
	ClassRedirection
	ClassUnauthorized
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassRedirection:
		return "redirection"
	case ClassUnauthorized:
		return "unauthorized"
	}
	return "other"
}

// Response is a fully read reply from a swarm node.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	// Close is set when the node announced it will close the connection.
	Close bool
}

// Class classifies the response status.
func (r *Response) Class() Class {
	switch {
	case r.StatusCode == http.StatusUnauthorized:
		return ClassUnauthorized
	case r.StatusCode >= 200 && r.StatusCode < 300:
		return ClassSuccess
	case r.StatusCode >= 300 && r.StatusCode < 400:
		return ClassRedirection
	}
	return ClassOther
}
