package swarmhttp

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Challenge holds the parameters of a WWW-Authenticate digest challenge.
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	Qop       []string
	Algorithm string
	Stale     bool

	hasOpaque bool
}

// ParseChallenge parses a "Digest ..." challenge. realm and nonce are required.
func ParseChallenge(s string) (*Challenge, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 || !strings.EqualFold(s[:i], "Digest") {
		return nil, errors.Wrapf(ErrMalformedChallenge, "not a digest challenge: %q", s)
	}

	params, err := parseParams(s[i+1:])
	if err != nil {
		return nil, err
	}

	c := &Challenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Algorithm: params["algorithm"],
		Stale:     strings.EqualFold(params["stale"], "true"),
	}
	c.Opaque, c.hasOpaque = params["opaque"]
	if qop, ok := params["qop"]; ok {
		for _, q := range strings.Split(qop, ",") {
			if q = strings.TrimSpace(q); q != "" {
				c.Qop = append(c.Qop, q)
			}
		}
	}

	if _, ok := params["realm"]; !ok {
		return nil, errors.Wrap(ErrMalformedChallenge, "missing realm")
	}
	if c.Nonce == "" {
		return nil, errors.Wrap(ErrMalformedChallenge, "missing nonce")
	}
	return c, nil
}

// parseParams reads a comma separated list of key=value pairs where values are
// either tokens or quoted strings. Keys are lower-cased.
func parseParams(s string) (map[string]string, error) {
	params := map[string]string{}
	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			return params, nil
		}

		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, errors.Wrapf(ErrMalformedChallenge, "bad parameter near %q", s)
		}
		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		s = strings.TrimLeft(s[eq+1:], " \t")

		var val string
		if strings.HasPrefix(s, `"`) {
			var b strings.Builder
			j := 1
			for ; j < len(s) && s[j] != '"'; j++ {
				if s[j] == '\\' && j+1 < len(s) {
					j++
				}
				b.WriteByte(s[j])
			}
			if j >= len(s) {
				return nil, errors.Wrapf(ErrMalformedChallenge, "unterminated value for %s", key)
			}
			val = b.String()
			s = s[j+1:]
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				end = len(s)
			}
			val = strings.TrimSpace(s[:end])
			s = s[end:]
		}
		params[key] = val
	}
}

// DigestAuthenticator computes digest Authorization headers (RFC 2617 / 7616).
type DigestAuthenticator struct {
	// Cnonce returns the client nonce. Defaults to a random UUID.
	Cnonce func() string
}

func (a *DigestAuthenticator) cnonce() string {
	if a != nil && a.Cnonce != nil {
		return a.Cnonce()
	}
	return strings.Replace(uuid.New().String(), "-", "", -1)
}

// BuildAuthorizationHeader answers challenge for a request with the given
// method against uri.
func (a *DigestAuthenticator) BuildAuthorizationHeader(challenge string, uri *url.URL, method Method, username, password string) (string, error) {
	c, err := ParseChallenge(challenge)
	if err != nil {
		return "", err
	}

	algorithm := c.Algorithm
	if algorithm == "" {
		algorithm = "MD5"
	}
	var newHash func() hash.Hash
	sess := false
	switch strings.ToUpper(algorithm) {
	case "MD5":
		newHash = md5.New
	case "MD5-SESS":
		newHash, sess = md5.New, true
	case "SHA-256":
		newHash = sha256.New
	case "SHA-256-SESS":
		newHash, sess = sha256.New, true
	default:
		return "", errors.Wrapf(ErrMalformedChallenge, "unsupported algorithm %q", algorithm)
	}
	h := func(parts ...string) string {
		d := newHash()
		d.Write([]byte(strings.Join(parts, ":")))
		return hex.EncodeToString(d.Sum(nil))
	}

	qop := ""
	if len(c.Qop) > 0 {
		for _, q := range c.Qop {
			if strings.EqualFold(q, "auth") {
				qop = "auth"
			}
		}
		if qop == "" {
			return "", errors.Wrapf(ErrMalformedChallenge, "no supported qop in %v", c.Qop)
		}
	}

	path := uri.RequestURI()
	const nc = "00000001"
	cnonce := ""
	if qop != "" || sess {
		cnonce = a.cnonce()
	}

	ha1 := h(username, c.Realm, password)
	if sess {
		ha1 = h(ha1, c.Nonce, cnonce)
	}
	ha2 := h(string(method), path)

	var response string
	if qop != "" {
		response = h(ha1, c.Nonce, nc, cnonce, qop, ha2)
	} else {
		response = h(ha1, c.Nonce, ha2)
	}

	fields := []string{
		"Digest username="+quote(username),
		"realm="+quote(c.Realm),
		"algorithm=" + algorithm,
	}
	if qop != "" {
		fields = append(fields, "qop="+qop)
	}
	fields = append(fields,
		fmt.Sprintf(`uri="%s"`, path),
		"nonce="+quote(c.Nonce),
	)
	if qop != "" {
		fields = append(fields, "nc="+nc, "cnonce="+quote(cnonce))
	}
	fields = append(fields, fmt.Sprintf(`response="%s"`, response))
	if c.hasOpaque {
		fields = append(fields, "opaque="+quote(c.Opaque))
	}
	return strings.Join(fields, ", "), nil
}

var quotedPairs = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote renders s as an HTTP quoted-string.
func quote(s string) string {
	return `"` + quotedPairs.Replace(s) + `"`
}
