// Package cookies persists webmail sessions between runs so the inbox can
// be opened without logging in every time.
package cookies

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultMaxAge is how long a saved session is trusted before a fresh login
// is required.
const DefaultMaxAge = 7 * 24 * time.Hour

var (
	// ErrStale means the cookie file exists but is older than maxAge.
	ErrStale = errors.New("cookies: saved session is too old")
	// ErrEmpty means the file parsed but contained no cookies.
	ErrEmpty = errors.New("cookies: no cookies in file")
)

// Cookie is one browser cookie in the on-disk format.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// envelope is the wrapped file shape. Older exports are a bare cookie list;
// both are accepted on load. The timestamp is epoch seconds (fractions
// allowed), with string layouts tolerated for hand-edited files.
type envelope struct {
	Timestamp jsoniter.RawMessage `json:"timestamp"`
	Count     int                 `json:"count"`
	Cookies   []Cookie            `json:"cookies"`
}

const timestampLayout = "2006-01-02 15:04:05"

// Store reads and writes a single cookie file.
type Store struct {
	path   string
	maxAge time.Duration
}

// NewStore resolves path (expanding a leading ~) into a Store. A maxAge of
// zero uses DefaultMaxAge.
func NewStore(path string, maxAge time.Duration) (*Store, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("cookies: resolving path: %w", err)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Store{path: expanded, maxAge: maxAge}, nil
}

// Path returns the resolved file location.
func (s *Store) Path() string { return s.path }

// Load reads the cookie file, accepting either the wrapped envelope shape or
// a bare cookie array. Wrapped files older than maxAge return ErrStale; bare
// arrays carry no timestamp and are trusted as-is.
func (s *Store) Load() ([]Cookie, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("cookies: reading %s: %w", s.path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Cookies != nil {
		if len(env.Timestamp) > 0 {
			saved, perr := parseTimestamp(env.Timestamp)
			if perr == nil && time.Since(saved) > s.maxAge {
				return nil, ErrStale
			}
		}
		return validCookies(env.Cookies)
	}

	var bare []Cookie
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("cookies: parsing %s: %w", s.path, err)
	}
	return validCookies(bare)
}

// validCookies drops entries without a name and value; a file with nothing
// usable left returns ErrEmpty.
func validCookies(cs []Cookie) ([]Cookie, error) {
	out := make([]Cookie, 0, len(cs))
	for _, c := range cs {
		if c.Name == "" || c.Value == "" {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Save writes cookies in the wrapped shape with the current epoch timestamp.
func (s *Store) Save(cs []Cookie) error {
	env := envelope{
		Timestamp: jsoniter.RawMessage(strconv.FormatInt(time.Now().Unix(), 10)),
		Count:     len(cs),
		Cookies:   cs,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("cookies: encoding: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("cookies: writing %s: %w", s.path, err)
	}
	return nil
}

// parseTimestamp decodes the raw timestamp field. The exporter writes epoch
// seconds; string layouts and RFC 3339 are accepted for hand-edited files.
func parseTimestamp(raw jsoniter.RawMessage) (time.Time, error) {
	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		return time.Unix(int64(epoch), 0), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("cookies: unrecognized timestamp %s", raw)
	}
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
