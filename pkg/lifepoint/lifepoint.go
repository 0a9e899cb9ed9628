// Package lifepoint reads and writes the swarm "lifepoint" header.
//
// A lifepoint value is a comma separated list of entries, each a bracketed
// HTTP date (possibly empty) followed by policy text:
//
//	[Wed, 29 Jun 2016 13:30:39 GMT] reps=16:4, deletable=True, [] delete
//
// An entry's policy applies until its date. An entry whose policy is "delete"
// marks the object for deletion once the preceding dates have passed, so the
// date in force at that point is the object's expiry.
package lifepoint

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HeaderName is the request and response header carrying lifepoints.
const HeaderName = "Lifepoint"

// Policy is the replication policy stored alongside an expiry.
const Policy = "reps=16:4, deletable=True"

var ErrMalformedLifepoint = errors.New("malformed lifepoint")

type Entry struct {
	// Timestamp is the zero time when the entry has an empty date.
	Timestamp time.Time
	Policy    string
}

// HasTimestamp reports whether the entry carries a date.
func (e Entry) HasTimestamp() bool {
	return !e.Timestamp.IsZero()
}

// Deletes reports whether the entry's policy contains the delete marker.
func (e Entry) Deletes() bool {
	words := strings.FieldsFunc(e.Policy, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	for _, w := range words {
		if strings.EqualFold(w, "delete") {
			return true
		}
	}
	return false
}

func (e Entry) String() string {
	ts := ""
	if e.HasTimestamp() {
		ts = e.Timestamp.UTC().Format(http.TimeFormat)
	}
	return "[" + ts + "] " + e.Policy
}

// Encode returns the entries that keep an object for ttl after now and then
// delete it.
func Encode(ttl time.Duration, now time.Time) []string {
	expires := Entry{Timestamp: now.Add(ttl), Policy: Policy}
	return []string{
		expires.String(),
		Entry{Policy: "delete"}.String(),
	}
}

// Header returns Encode's entries joined into a single header value.
func Header(ttl time.Duration, now time.Time) string {
	return strings.Join(Encode(ttl, now), ", ")
}

var entryStart = regexp.MustCompile(`(?:^|,)\s*\[`)

// Parse splits a header value into entries. Policy text may itself contain
// commas; a new entry only starts at a comma followed by "[".
func Parse(value string) ([]Entry, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	locs := entryStart.FindAllStringIndex(value, -1)
	if len(locs) == 0 || locs[0][0] != 0 {
		return nil, errors.Wrapf(ErrMalformedLifepoint, "%q", value)
	}

	entries := make([]Entry, 0, len(locs))
	for i, loc := range locs {
		end := len(value)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		raw := value[loc[1]:end]

		closing := strings.IndexByte(raw, ']')
		if closing < 0 {
			return nil, errors.Wrapf(ErrMalformedLifepoint, "unterminated date in %q", value)
		}

		var e Entry
		if ts := strings.TrimSpace(raw[:closing]); ts != "" {
			t, err := http.ParseTime(ts)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedLifepoint, "date %q: %v", ts, err)
			}
			e.Timestamp = t
		}
		e.Policy = strings.TrimSpace(raw[closing+1:])
		entries = append(entries, e)
	}
	return entries, nil
}

// Decode returns the time left before the object described by value is
// deleted. ok is false when no entry schedules a deletion.
func Decode(value string, now time.Time) (ttl time.Duration, ok bool, err error) {
	entries, err := Parse(value)
	if err != nil {
		return 0, false, err
	}

	var last time.Time
	for _, e := range entries {
		if e.HasTimestamp() {
			last = e.Timestamp
		}
		if e.Deletes() {
			if last.IsZero() {
				return 0, false, nil
			}
			return time.Duration(last.Unix()-now.Unix()) * time.Second, true, nil
		}
	}
	return 0, false, nil
}
