package swarmbucket_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hbog/swarmbucket/pkg/swarmbucket"
	"github.com/hbog/swarmbucket/pkg/swarmhttp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2016-06-29 11:30:39 +0200
var now = time.Unix(1467192639, 0)

type recordingExecutor struct {
	requests  []*swarmhttp.Request
	creds     []swarmhttp.Credentials
	responses []*swarmhttp.Response
	err       error
}

func (e *recordingExecutor) Execute(ctx context.Context, req *swarmhttp.Request, creds swarmhttp.Credentials) (*swarmhttp.Response, error) {
	e.requests = append(e.requests, req)
	e.creds = append(e.creds, creds)
	if e.err != nil {
		return nil, e.err
	}
	resp := e.responses[0]
	if len(e.responses) > 1 {
		e.responses = e.responses[1:]
	}
	return resp, nil
}

func okResponse(header http.Header) *swarmhttp.Response {
	if header == nil {
		header = http.Header{}
	}
	return &swarmhttp.Response{StatusCode: http.StatusOK, Header: header}
}

func newTestBucket(t *testing.T, e *recordingExecutor) *swarmbucket.Bucket {
	b, err := swarmbucket.New("domain", "bucket",
		swarmbucket.WithExecutor(e),
		swarmbucket.WithCredentials("username", "password"),
		swarmbucket.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return b
}

func TestNew(t *testing.T) {
	b, err := swarmbucket.New("domain", "bucket")
	require.NoError(t, err)
	assert.Equal(t, "http://domain/bucket", b.BaseURL())

	_, err = swarmbucket.New("", "bucket")
	assert.Equal(t, swarmbucket.ErrEmptyDomain, err)

	_, err = swarmbucket.New("domain", "")
	assert.Equal(t, swarmbucket.ErrEmptyBucket, err)
}

func TestOperations(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		call   func(b *swarmbucket.Bucket) (*swarmhttp.Response, error)
		method swarmhttp.Method
		path   string
	}{
		{"get", func(b *swarmbucket.Bucket) (*swarmhttp.Response, error) { return b.Get(ctx, "objectname") },
			swarmhttp.MethodGet, "/bucket/objectname"},
		{"head", func(b *swarmbucket.Bucket) (*swarmhttp.Response, error) { return b.Head(ctx, "objectname") },
			swarmhttp.MethodHead, "/bucket/objectname?verbose=true"},
		{"delete", func(b *swarmbucket.Bucket) (*swarmhttp.Response, error) { return b.Delete(ctx, "objectname") },
			swarmhttp.MethodDelete, "/bucket/objectname"},
		{"copy", func(b *swarmbucket.Bucket) (*swarmhttp.Response, error) { return b.Copy(ctx, "objectname", nil) },
			swarmhttp.MethodCopy, "/bucket/objectname?gencontentmd5=true&preserve=true"},
		{"post", func(b *swarmbucket.Bucket) (*swarmhttp.Response, error) {
			return b.Post(ctx, "objectname", []byte("body"), "content/type", 0)
		}, swarmhttp.MethodPost, "/bucket/objectname"},
		{"append", func(b *swarmbucket.Bucket) (*swarmhttp.Response, error) {
			return b.Append(ctx, "objectname", []byte("more"), "content/type")
		}, swarmhttp.MethodAppend, "/bucket/objectname"},
	}

	for _, c := range cases {
		ok := okResponse(nil)
		e := &recordingExecutor{responses: []*swarmhttp.Response{ok}}

		resp, err := c.call(newTestBucket(t, e))
		require.NoError(t, err, c.name)

		assert.True(t, resp == ok, c.name)
		require.Len(t, e.requests, 1, c.name)
		assert.Equal(t, c.method, e.requests[0].Method, c.name)
		assert.Equal(t, c.path, e.requests[0].Path(), c.name)
		assert.Equal(t, "domain:80", e.requests[0].Addr(), c.name)
		assert.Equal(t, swarmhttp.Credentials{Username: "username", Password: "password"}, e.creds[0], c.name)
	}
}

func TestObjectNamesAreEscaped(t *testing.T) {
	e := &recordingExecutor{responses: []*swarmhttp.Response{okResponse(nil)}}
	_, err := newTestBucket(t, e).Get(context.Background(), "dir/with space?.txt")
	require.NoError(t, err)

	assert.Equal(t, "/bucket/dir/with%20space%3F.txt", e.requests[0].Path())
}

func TestEmptyName(t *testing.T) {
	e := &recordingExecutor{}
	b := newTestBucket(t, e)

	_, err := b.Get(context.Background(), "")
	assert.Equal(t, swarmbucket.ErrEmptyName, err)
	_, err = b.Present(context.Background(), "")
	assert.Equal(t, swarmbucket.ErrEmptyName, err)
	assert.Empty(t, e.requests)
}

func TestPost(t *testing.T) {
	e := &recordingExecutor{responses: []*swarmhttp.Response{okResponse(nil)}}
	b := newTestBucket(t, e)

	_, err := b.Post(context.Background(), "objectname", []byte("body"), "content/type", 0)
	require.NoError(t, err)
	req := e.requests[0]
	assert.Equal(t, "content/type", req.Header.Get("Content-Type"))
	assert.Equal(t, "post=owner@, change=owner@", req.Header.Get("Castor-Authorization"))
	assert.Empty(t, req.Header.Get("lifepoint"))
	assert.Equal(t, []byte("body"), req.Body)

	_, err = b.Post(context.Background(), "objectname", []byte("body"), "content/type", 14400*time.Second)
	require.NoError(t, err)
	req = e.requests[1]
	assert.Equal(t, "content/type", req.Header.Get("Content-Type"))
	assert.Regexp(t, `\[Wed, 29 Jun 2016 13:30:39 GMT\] \S* deletable=True, \[\] delete`, req.Header.Get("lifepoint"))
}

func TestCopyHeaders(t *testing.T) {
	e := &recordingExecutor{responses: []*swarmhttp.Response{okResponse(nil)}}
	_, err := newTestBucket(t, e).Copy(context.Background(), "objectname", map[string]string{
		"x-meta-owner": "someone",
	})
	require.NoError(t, err)
	assert.Equal(t, "someone", e.requests[0].Header.Get("X-Meta-Owner"))
}

func lifepointHeader(v string) http.Header {
	h := http.Header{}
	if v != "" {
		h.Set("Lifepoint", v)
	}
	return h
}

func TestPresent(t *testing.T) {
	cases := []struct {
		name     string
		response *swarmhttp.Response
		want     swarmbucket.Presence
	}{
		{
			name:     "object does not exist",
			response: &swarmhttp.Response{StatusCode: http.StatusNotFound, Header: http.Header{}},
			want:     swarmbucket.Presence{},
		},
		{
			name:     "without a lifepoint",
			response: okResponse(nil),
			want:     swarmbucket.Presence{Exists: true},
		},
		{
			name:     "with a delete lifepoint",
			response: okResponse(lifepointHeader("[Wed, 29 Jun 2016 13:30:39 GMT] reps:16:4 deletable=True, [] delete")),
			want:     swarmbucket.Presence{Exists: true, Expiring: true, TTL: 14400 * time.Second},
		},
		{
			name:     "with a non-delete lifepoint",
			response: okResponse(lifepointHeader("[Wed, 29 Jun 2016 13:30:39 GMT] reps:16:4 deletable=True, [] reps:2")),
			want:     swarmbucket.Presence{Exists: true},
		},
		{
			name: "with lifepoints on separate lines",
			response: okResponse(http.Header{"Lifepoint": {
				"[Wed, 29 Jun 2016 13:30:39 GMT] reps=16:4, deletable=True",
				"[] delete",
			}}),
			want: swarmbucket.Presence{Exists: true, Expiring: true, TTL: 4 * time.Hour},
		},
		{
			name: "with multiple lifepoints",
			response: okResponse(lifepointHeader("[Wed, 29 Jun 2016 12:30:39 GMT] reps:16:4 deletable=False," +
				"[Wed, 29 Jun 2016 13:30:39 GMT] reps:2 deletable=True,[] delete")),
			want: swarmbucket.Presence{Exists: true, Expiring: true, TTL: 14400 * time.Second},
		},
	}

	for _, c := range cases {
		e := &recordingExecutor{responses: []*swarmhttp.Response{c.response}}
		p, err := newTestBucket(t, e).Present(context.Background(), "objectname")
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, *p, c.name)
		assert.Equal(t, swarmhttp.MethodHead, e.requests[0].Method, c.name)
	}
}

func TestPresentErrors(t *testing.T) {
	e := &recordingExecutor{err: swarmhttp.ErrTooManyRedirects}
	_, err := newTestBucket(t, e).Present(context.Background(), "objectname")
	assert.True(t, errors.Is(err, swarmhttp.ErrTooManyRedirects))

	e = &recordingExecutor{responses: []*swarmhttp.Response{okResponse(lifepointHeader("[soon] delete"))}}
	_, err = newTestBucket(t, e).Present(context.Background(), "objectname")
	assert.Error(t, err)
}
