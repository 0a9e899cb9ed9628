package swarmbucket

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/url"
	"strings"
	"time"

	"github.com/hbog/swarmbucket/pkg/lifepoint"
	"github.com/hbog/swarmbucket/pkg/swarmhttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Header names and values specific to swarm.
const (
	HeaderCastorAuthorization = "Castor-Authorization"
	HeaderContentType         = "Content-Type"

	// Objects posted through a Bucket may only be changed by their owner.
	OwnerOnly = "post=owner@, change=owner@"

	ParamVerbose       = "verbose"
	ParamPreserve      = "preserve"
	ParamGenContentMD5 = "gencontentmd5"
)

// Executor runs a request to its terminal response. *swarmhttp.Executor
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, req *swarmhttp.Request, creds swarmhttp.Credentials) (*swarmhttp.Response, error)
}

// Bucket provides the object operations of a single swarm bucket.
type Bucket struct {
	baseURL string
	creds   swarmhttp.Credentials
	exec    Executor
	logger  logrus.FieldLogger
	now     func() time.Time
}

type Option func(*Bucket)

// WithCredentials sets the credentials used to answer digest challenges.
func WithCredentials(username, password string) Option {
	return func(b *Bucket) {
		b.creds = swarmhttp.Credentials{Username: username, Password: password}
	}
}

func WithExecutor(e Executor) Option {
	return func(b *Bucket) {
		b.exec = e
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bucket) {
		b.logger = l
	}
}

// WithClock replaces time.Now for lifepoint computations.
func WithClock(now func() time.Time) Option {
	return func(b *Bucket) {
		b.now = now
	}
}

// New returns a Bucket for bucket on the swarm reachable at domain
// (host or host:port).
func New(domain, bucket string, opts ...Option) (*Bucket, error) {
	if domain == "" {
		return nil, ErrEmptyDomain
	}
	if bucket == "" {
		return nil, ErrEmptyBucket
	}

	b := &Bucket{
		baseURL: fmt.Sprintf("http://%s/%s", domain, url.PathEscape(bucket)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		l := logrus.New()
		l.Out = ioutil.Discard
		b.logger = l
	}
	if b.exec == nil {
		b.exec = swarmhttp.NewExecutor(&swarmhttp.NetDialer{}, b.logger)
	}
	return b, nil
}

// BaseURL returns the URL of the bucket, the prefix of every object URL.
func (b *Bucket) BaseURL() string {
	return b.baseURL
}

// Get fetches the object name.
func (b *Bucket) Get(ctx context.Context, name string) (*swarmhttp.Response, error) {
	req, err := b.newRequest(swarmhttp.MethodGet, name, nil, nil)
	if err != nil {
		return nil, err
	}
	return b.submit(ctx, req)
}

// Head fetches the metadata of the object name.
func (b *Bucket) Head(ctx context.Context, name string) (*swarmhttp.Response, error) {
	params := url.Values{}
	params.Set(ParamVerbose, "true")

	req, err := b.newRequest(swarmhttp.MethodHead, name, params, nil)
	if err != nil {
		return nil, err
	}
	return b.submit(ctx, req)
}

func (b *Bucket) Delete(ctx context.Context, name string) (*swarmhttp.Response, error) {
	req, err := b.newRequest(swarmhttp.MethodDelete, name, nil, nil)
	if err != nil {
		return nil, err
	}
	return b.submit(ctx, req)
}

// Copy copies the object onto itself, replacing its metadata with header while
// keeping the existing metadata not named in header.
func (b *Bucket) Copy(ctx context.Context, name string, header map[string]string) (*swarmhttp.Response, error) {
	params := url.Values{}
	params.Set(ParamPreserve, "true")
	params.Set(ParamGenContentMD5, "true")

	req, err := b.newRequest(swarmhttp.MethodCopy, name, params, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	return b.submit(ctx, req)
}

// Post stores body under name. A positive ttl schedules the object for
// deletion ttl from now.
func (b *Bucket) Post(ctx context.Context, name string, body []byte, contentType string, ttl time.Duration) (*swarmhttp.Response, error) {
	req, err := b.newRequest(swarmhttp.MethodPost, name, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(HeaderContentType, contentType)
	req.Header.Set(HeaderCastorAuthorization, OwnerOnly)
	if ttl > 0 {
		req.Header.Set(lifepoint.HeaderName, lifepoint.Header(ttl, b.now()))
	}
	return b.submit(ctx, req)
}

// Append adds body to the end of the existing object name.
func (b *Bucket) Append(ctx context.Context, name string, body []byte, contentType string) (*swarmhttp.Response, error) {
	req, err := b.newRequest(swarmhttp.MethodAppend, name, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(HeaderContentType, contentType)
	return b.submit(ctx, req)
}

// Presence describes whether an object exists and for how long it is kept.
type Presence struct {
	Exists bool
	// Expiring is set when the object carries a delete lifepoint, TTL is then
	// the time left until deletion.
	Expiring bool
	TTL      time.Duration
}

// Present checks whether the object name exists.
func (b *Bucket) Present(ctx context.Context, name string) (*Presence, error) {
	resp, err := b.Head(ctx, name)
	if err != nil {
		return nil, err
	}
	if resp.Class() != swarmhttp.ClassSuccess {
		return &Presence{}, nil
	}

	// Nodes send one field line per lifepoint.
	ttl, ok, err := lifepoint.Decode(
		strings.Join(resp.Header.Values(lifepoint.HeaderName), ", "), b.now())
	if err != nil {
		return nil, errors.Wrapf(err, "object %s", name)
	}
	return &Presence{Exists: true, Expiring: ok, TTL: ttl}, nil
}

func (b *Bucket) newRequest(method swarmhttp.Method, name string, params url.Values, body []byte) (*swarmhttp.Request, error) {
	u, err := b.objectURL(name, params)
	if err != nil {
		return nil, err
	}
	return swarmhttp.NewRequest(method, u, body)
}

func (b *Bucket) objectURL(name string, params url.Values) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}

	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := b.baseURL + "/" + strings.Join(segments, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u, nil
}

func (b *Bucket) submit(ctx context.Context, req *swarmhttp.Request) (*swarmhttp.Response, error) {
	log := b.logger.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.Path(),
	})

	resp, err := b.exec.Execute(ctx, req, b.creds)
	if err != nil {
		log.WithError(err).Warn("swarm request failed")
		return nil, err
	}
	log.WithField("status", resp.StatusCode).Debug("swarm request done")
	return resp, nil
}
