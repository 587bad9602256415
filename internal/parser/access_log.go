// Package parser turns raw access log lines into structured stream events.
//
// The log format is external, versioned configuration: the parser is built
// from a regex with named capture groups, and a pattern that does not carry
// the required groups is rejected at construction (a configuration error,
// never a crash). Individual malformed lines are reported as errors to the
// caller, which counts and discards them - a bad line never halts the
// pipeline.
//
// Example matching line (nginx combined format):
//
//	203.0.113.7 - - [21/Aug/2026:14:03:11 +0000] "GET /hls/seg00123.ts HTTP/1.1" 200 176423 "-" "AppleCoreMedia/1.0"
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timestampLayout is the common log format time layout.
const timestampLayout = "02/Jan/2006:15:04:05 -0700"

// RequestKind identifies the type of stream request.
type RequestKind int

const (
	KindSegment  RequestKind = iota // media segment (.ts)
	KindPlaylist                    // live playlist (.m3u8)
)

// String returns a human-readable name for the request kind.
func (k RequestKind) String() string {
	switch k {
	case KindSegment:
		return "segment"
	case KindPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// AccessEvent is one parsed stream request. Immutable once parsed, except
// that the engine fills Fingerprint immediately after parsing.
type AccessEvent struct {
	Timestamp   time.Time // event time from the log line, not arrival time
	Fingerprint string    // derived pseudo-identity, set by the engine
	RemoteAddr  string
	UserAgent   string
	Path        string
	Status      int
	Bytes       int64
	Kind        RequestKind
}

// IsSegment reports whether this is a media segment request.
func (e *AccessEvent) IsSegment() bool { return e.Kind == KindSegment }

// IsPlaylist reports whether this is a playlist request.
func (e *AccessEvent) IsPlaylist() bool { return e.Kind == KindPlaylist }

// IsError reports whether the request failed (status >= 400).
func (e *AccessEvent) IsError() bool { return e.Status >= 400 }

// Parser parses access log lines against a configured pattern and filters
// to stream traffic under a path prefix.
//
// Not safe for concurrent use; the single ingestion goroutine owns it.
type Parser struct {
	re           *regexp.Regexp
	streamPrefix string

	// Capture group indices resolved once at construction
	idxAddr    int
	idxTime    int
	idxRequest int
	idxStatus  int
	idxBytes   int
	idxAgent   int // -1 if the pattern has no agent group
}

// New builds a Parser from a log pattern and stream path prefix.
// The pattern must define named groups addr, time, request, status, bytes;
// agent is optional.
func New(pattern, streamPrefix string) (*Parser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("log pattern does not compile: %w", err)
	}

	p := &Parser{
		re:           re,
		streamPrefix: streamPrefix,
		idxAgent:     -1,
	}

	for i, name := range re.SubexpNames() {
		switch name {
		case "addr":
			p.idxAddr = i
		case "time":
			p.idxTime = i
		case "request":
			p.idxRequest = i
		case "status":
			p.idxStatus = i
		case "bytes":
			p.idxBytes = i
		case "agent":
			p.idxAgent = i
		}
	}

	for field, idx := range map[string]int{
		"addr": p.idxAddr, "time": p.idxTime, "request": p.idxRequest,
		"status": p.idxStatus, "bytes": p.idxBytes,
	} {
		if idx == 0 {
			return nil, fmt.Errorf("log pattern missing named group %q", field)
		}
	}

	return p, nil
}

// ParseLine parses one raw line.
//
// Returns (event, nil) for a stream request, (nil, nil) for well-formed
// traffic outside the stream scope (dashboard assets, API calls, non-GET
// methods), and (nil, err) for a malformed line.
func (p *Parser) ParseLine(line string) (*AccessEvent, error) {
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("line does not match log pattern")
	}

	method, path, ok := splitRequest(m[p.idxRequest])
	if !ok {
		return nil, fmt.Errorf("malformed request field %q", m[p.idxRequest])
	}
	if !strings.EqualFold(method, "GET") {
		return nil, nil
	}

	kind, ok := p.classifyPath(path)
	if !ok {
		return nil, nil
	}

	ts, err := time.Parse(timestampLayout, m[p.idxTime])
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", m[p.idxTime], err)
	}

	status, err := strconv.Atoi(m[p.idxStatus])
	if err != nil {
		return nil, fmt.Errorf("bad status %q: %w", m[p.idxStatus], err)
	}

	var bytes int64
	if b := m[p.idxBytes]; b != "-" {
		bytes, err = strconv.ParseInt(b, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad bytes %q: %w", b, err)
		}
	}

	agent := ""
	if p.idxAgent > 0 {
		agent = m[p.idxAgent]
	}

	return &AccessEvent{
		Timestamp:  ts,
		RemoteAddr: m[p.idxAddr],
		UserAgent:  agent,
		Path:       path,
		Status:     status,
		Bytes:      bytes,
		Kind:       kind,
	}, nil
}

// classifyPath maps a request path to a stream request kind.
// Paths outside the stream prefix, and non-media paths under it, are not
// stream traffic.
func (p *Parser) classifyPath(path string) (RequestKind, bool) {
	lower := strings.ToLower(path)

	// Strip query string before extension matching
	if idx := strings.Index(lower, "?"); idx > 0 {
		lower = lower[:idx]
	}

	if !strings.HasPrefix(lower, p.streamPrefix) {
		return 0, false
	}

	switch {
	case strings.HasSuffix(lower, ".ts"):
		return KindSegment, true
	case strings.HasSuffix(lower, ".m3u8"):
		return KindPlaylist, true
	default:
		return 0, false
	}
}

// splitRequest splits a `"GET /path HTTP/1.1"` request field.
func splitRequest(request string) (method, path string, ok bool) {
	bits := strings.Fields(request)
	if len(bits) < 2 {
		return "", "", false
	}
	return bits[0], bits[1], true
}
