package hqplayer

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// digestChallenge is a parsed WWW-Authenticate: Digest header.
type digestChallenge struct {
	Realm     string
	Nonce     string
	QOP       string // "auth" | "" (no qop)
	Opaque    string
	Algorithm string // "MD5" | "MD5-sess"
}

var challengeParamRe = regexp.MustCompile(`([a-zA-Z]+)=("[^"]*"|[^,]+)`)

// parseDigestChallenge parses a WWW-Authenticate header value of the
// form `Digest realm="...", nonce="...", qop="auth", ...`.
func parseDigestChallenge(header string) (digestChallenge, bool) {
	if !strings.HasPrefix(header, "Digest ") {
		return digestChallenge{}, false
	}
	var c digestChallenge
	for _, m := range challengeParamRe.FindAllStringSubmatch(header, -1) {
		key := strings.ToLower(m[1])
		val := strings.Trim(m[2], `"`)
		switch key {
		case "realm":
			c.Realm = val
		case "nonce":
			c.Nonce = val
		case "qop":
			c.QOP = firstQOP(val)
		case "opaque":
			c.Opaque = val
		case "algorithm":
			c.Algorithm = val
		}
	}
	if c.Nonce == "" {
		return digestChallenge{}, false
	}
	return c, true
}

func firstQOP(val string) string {
	parts := strings.Split(val, ",")
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}

// digestState tracks the nonce-count across requests that reuse one
// challenge, as required by RFC 7616.
type digestState struct {
	mu    sync.Mutex
	nonce string
	nc    int
}

func (s *digestState) next(nonce string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nonce != s.nonce {
		s.nonce = nonce
		s.nc = 0
	}
	s.nc++
	return s.nc
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func genCnonce() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// buildAuthorization computes the Authorization: Digest header value
// for one request against a previously parsed challenge.
func buildAuthorization(c digestChallenge, state *digestState, username, password, method, uri string) string {
	cnonce := genCnonce()

	ha1 := md5hex(fmt.Sprintf("%s:%s:%s", username, c.Realm, password))
	if strings.EqualFold(c.Algorithm, "MD5-sess") {
		ha1 = md5hex(fmt.Sprintf("%s:%s:%s", ha1, c.Nonce, cnonce))
	}
	ha2 := md5hex(fmt.Sprintf("%s:%s", method, uri))

	ncHex := fmt.Sprintf("%08x", state.next(c.Nonce))

	var response string
	if c.QOP != "" {
		response = md5hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, c.Nonce, ncHex, cnonce, c.QOP, ha2))
	} else {
		response = md5hex(fmt.Sprintf("%s:%s:%s", ha1, c.Nonce, ha2))
	}

	parts := []string{
		fmt.Sprintf(`username="%s"`, username),
		fmt.Sprintf(`realm="%s"`, c.Realm),
		fmt.Sprintf(`nonce="%s"`, c.Nonce),
		fmt.Sprintf(`uri="%s"`, uri),
		fmt.Sprintf(`response="%s"`, response),
	}
	if c.QOP != "" {
		parts = append(parts, fmt.Sprintf(`qop=%s`, c.QOP), fmt.Sprintf(`nc=%s`, ncHex), fmt.Sprintf(`cnonce="%s"`, cnonce))
	}
	if c.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, c.Opaque))
	}
	if c.Algorithm != "" {
		parts = append(parts, fmt.Sprintf(`algorithm=%s`, c.Algorithm))
	}
	return "Digest " + strings.Join(parts, ", ")
}
