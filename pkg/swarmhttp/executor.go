package swarmhttp

import (
	"context"
	"io/ioutil"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MaxRedirects is the number of redirections followed within one call.
const MaxRedirects = 2

// Observer receives execution events. Implementations must be safe for
// concurrent use since one Executor may serve many calls.
type Observer interface {
	ObserveAttempt(method Method, statusCode int)
	ObserveRedirect()
	ObserveAuthRetry()
	// ObserveCall is reported once per Execute. result is "ok" when a
	// terminal response was returned, "error" otherwise.
	ObserveCall(method Method, result string, dur time.Duration)
}

// executionState is the only state carried from one attempt to the next.
type executionState struct {
	redirects     int
	authAttempted bool
}

// Executor drives a Request through redirects and a single digest
// authentication retry until a terminal response is reached.
type Executor struct {
	Dialer   Dialer
	Auth     *DigestAuthenticator
	Logger   logrus.FieldLogger
	Observer Observer
}

// NewExecutor returns an Executor using dialer. A nil logger discards output.
func NewExecutor(dialer Dialer, logger logrus.FieldLogger) *Executor {
	return &Executor{
		Dialer: dialer,
		Auth:   &DigestAuthenticator{},
		Logger: logger,
	}
}

// Execute sends req and returns the terminal response. A second 401 after
// presenting credentials is returned as a response, not an error. req is
// updated in place when the call is redirected.
func (e *Executor) Execute(ctx context.Context, req *Request, creds Credentials) (*Response, error) {
	start := time.Now()
	log := e.logger().WithFields(logrus.Fields{
		"call":   uuid.New().String(),
		"method": req.Method,
	})

	resp, err := e.execute(ctx, log, req, creds)

	result := "ok"
	if err != nil {
		result = "error"
		log.WithError(err).Debug("request failed")
	} else {
		log.WithField("status", resp.StatusCode).Debug("request complete")
	}
	if e.Observer != nil {
		e.Observer.ObserveCall(req.Method, result, time.Since(start))
	}
	return resp, err
}

func (e *Executor) execute(ctx context.Context, log logrus.FieldLogger, req *Request, creds Credentials) (*Response, error) {
	var state executionState

	conns := NewConnectionManager(e.Dialer)
	defer conns.Disconnect()

	if err := conns.Connect(ctx, req.Addr()); err != nil {
		return nil, err
	}

	for {
		log.WithFields(logrus.Fields{
			"addr": conns.Addr(),
			"path": req.Path(),
		}).Debug("sending request")

		resp, err := conns.Send(ctx, req)
		if err != nil {
			return nil, err
		}
		if e.Observer != nil {
			e.Observer.ObserveAttempt(req.Method, resp.StatusCode)
		}

		switch resp.Class() {
		case ClassRedirection:
			state.redirects++
			if state.redirects > MaxRedirects {
				return nil, errors.Wrapf(ErrTooManyRedirects, "%s %s", req.Method, req.Path())
			}

			location := resp.Header.Get("Location")
			if location == "" {
				return nil, errors.Wrapf(ErrInvalidArgument, "%d response without location", resp.StatusCode)
			}
			next, err := req.URI().Parse(location)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidArgument, "location %q: %v", location, err)
			}
			if err := req.SetURI(next); err != nil {
				return nil, err
			}
			log.WithField("location", location).Debug("redirected")
			if e.Observer != nil {
				e.Observer.ObserveRedirect()
			}

			if err := conns.Reconnect(ctx, req.Addr()); err != nil {
				return nil, err
			}

		case ClassUnauthorized:
			if state.authAttempted || req.Header.Get("Authorization") != "" || creds.Empty() {
				return resp, nil
			}
			state.authAttempted = true

			req.SetCredentials(creds)
			auth, err := e.authenticator().BuildAuthorizationHeader(
				resp.Header.Get("WWW-Authenticate"), req.URI(), req.Method,
				creds.Username, creds.Password)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", auth)
			log.Debug("retrying with digest authorization")
			if e.Observer != nil {
				e.Observer.ObserveAuthRetry()
			}

			if resp.Close {
				if err := conns.Reconnect(ctx, req.Addr()); err != nil {
					return nil, err
				}
			}

		default:
			conns.Disconnect()
			return resp, nil
		}
	}
}

func (e *Executor) logger() logrus.FieldLogger {
	if e.Logger == nil {
		l := logrus.New()
		l.Out = ioutil.Discard
		return l
	}
	return e.Logger
}

func (e *Executor) authenticator() *DigestAuthenticator {
	if e.Auth == nil {
		return &DigestAuthenticator{}
	}
	return e.Auth
}
