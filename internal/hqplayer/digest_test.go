package hqplayer

import (
	"strings"
	"testing"
)

func TestParseDigestChallenge(t *testing.T) {
	header := `Digest realm="HQPlayer", nonce="abc123", qop="auth", opaque="xyz", algorithm=MD5`
	c, ok := parseDigestChallenge(header)
	if !ok {
		t.Fatal("expected challenge to parse")
	}
	if c.Realm != "HQPlayer" || c.Nonce != "abc123" || c.QOP != "auth" || c.Opaque != "xyz" || c.Algorithm != "MD5" {
		t.Fatalf("unexpected challenge: %+v", c)
	}
}

func TestParseDigestChallengeRejectsNonDigest(t *testing.T) {
	_, ok := parseDigestChallenge(`Basic realm="x"`)
	if ok {
		t.Fatal("expected non-Digest header to be rejected")
	}
}

func TestNonceCountIncrementsAndPadsToEight(t *testing.T) {
	state := &digestState{}
	c := digestChallenge{Realm: "HQPlayer", Nonce: "n1", QOP: "auth"}

	auth1 := buildAuthorization(c, state, "user", "pass", "GET", "/config")
	auth2 := buildAuthorization(c, state, "user", "pass", "GET", "/config")

	if !strings.Contains(auth1, "nc=00000001") {
		t.Fatalf("expected first nc to be 00000001, got %q", auth1)
	}
	if !strings.Contains(auth2, "nc=00000002") {
		t.Fatalf("expected second nc to be 00000002, got %q", auth2)
	}
}

func TestBuildAuthorizationOmitsQOPFieldsWhenNoQOP(t *testing.T) {
	state := &digestState{}
	c := digestChallenge{Realm: "HQPlayer", Nonce: "n1"}
	auth := buildAuthorization(c, state, "user", "pass", "GET", "/")
	if strings.Contains(auth, "qop=") {
		t.Fatalf("expected no qop field when challenge has none, got %q", auth)
	}
}

// authField extracts the unquoted value of a Digest header field such
// as `cnonce="..."` or `response="..."`, failing the test if absent.
func authField(t *testing.T, auth, field string) string {
	t.Helper()
	marker := field + `="`
	idx := strings.Index(auth, marker)
	if idx < 0 {
		t.Fatalf("expected %s field in %q", field, auth)
	}
	rest := auth[idx+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		t.Fatalf("unterminated %s field in %q", field, auth)
	}
	return rest[:end]
}

// TestMD5SessUsesSameCnonceInHA1AndTransmittedField guards against
// RFC 7616's MD5-sess HA1 (MD5(H(A1):nonce:cnonce)) being computed
// with a different cnonce than the one the client actually sends — a
// mismatch the server can never reproduce, so every MD5-sess request
// would fail authentication.
func TestMD5SessUsesSameCnonceInHA1AndTransmittedField(t *testing.T) {
	state := &digestState{}
	c := digestChallenge{Realm: "HQPlayer", Nonce: "n1", QOP: "auth", Algorithm: "MD5-sess"}

	auth := buildAuthorization(c, state, "user", "pass", "GET", "/config")

	cnonce := authField(t, auth, "cnonce")
	nc := authField(t, auth, "nc")
	response := authField(t, auth, "response")

	ha1Base := md5hex("user:HQPlayer:pass")
	ha1 := md5hex(ha1Base + ":" + c.Nonce + ":" + cnonce)
	ha2 := md5hex("GET:/config")
	want := md5hex(ha1 + ":" + c.Nonce + ":" + nc + ":" + cnonce + ":auth:" + ha2)

	if response != want {
		t.Fatalf("response %q does not match the HA1 computed from the transmitted cnonce %q (want %q) — server can never reproduce a mismatched cnonce", response, cnonce, want)
	}
}
