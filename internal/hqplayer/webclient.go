package hqplayer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// ProfileOption is one entry of a pipeline <select>'s option list:
// its human-facing value and the index the native protocol expects
// for that same choice (spec.md §4.3 pipeline value-vs-index translation).
type ProfileOption struct {
	Value string
	Index int
	Label string
}

// WebSnapshot is everything scraped off the HQPlayer web UI in one
// pass: the current pipeline selection and the option lists needed to
// translate a UI value into a native index.
type WebSnapshot struct {
	Title      string
	Options    map[string][]ProfileOption // selectName -> options, e.g. "mode", "filter1x"
	Current    map[string]string          // selectName -> currently selected value
	Volume     float64
	XSRFToken  string
	ProfileSel []string // available profile names
}

// WebClient scrapes HQPlayer's web configuration UI over HTTP Digest
// auth. The UI exposes no JSON API; pages are scraped with the
// golang.org/x/net/html tokenizer for a few known fragments (see
// scrapeSnapshot).
type WebClient struct {
	host     string
	port     int
	username string
	password string

	http  *http.Client
	state *digestState
}

// NewWebClient creates a digest-authenticated client against one
// HQPlayer instance's web UI.
func NewWebClient(host string, port int, username, password string) *WebClient {
	jar, _ := cookiejar.New(nil)
	return &WebClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 5 * time.Second, Jar: jar},
		state:    &digestState{},
	}
}

func (c *WebClient) url(path string) string {
	return fmt.Sprintf("http://%s:%d%s", c.host, c.port, path)
}

// get issues a GET, retrying once with digest auth if challenged.
func (c *WebClient) get(ctx context.Context, path string) (string, error) {
	return c.doDigest(ctx, http.MethodGet, path, nil)
}

// postForm issues a POST with an application/x-www-form-urlencoded
// body, retrying once with digest auth if challenged.
func (c *WebClient) postForm(ctx context.Context, path string, form map[string]string) (string, error) {
	return c.doDigest(ctx, http.MethodPost, path, form)
}

func (c *WebClient) doDigest(ctx context.Context, method, path string, form map[string]string) (string, error) {
	body, status, header, err := c.attempt(ctx, method, path, form, "")
	if err != nil {
		return "", models.ErrBackendUnreachable(err.Error())
	}
	if status != http.StatusUnauthorized {
		return body, nil
	}

	challenge, ok := parseDigestChallenge(header.Get("WWW-Authenticate"))
	if !ok {
		return "", models.ErrBackendUnauthorized
	}
	auth := buildAuthorization(challenge, c.state, c.username, c.password, method, path)
	body, status, _, err = c.attempt(ctx, method, path, form, auth)
	if err != nil {
		return "", models.ErrBackendUnreachable(err.Error())
	}
	if status == http.StatusUnauthorized {
		return "", models.ErrBackendUnauthorized
	}
	return body, nil
}

func (c *WebClient) attempt(ctx context.Context, method, path string, form map[string]string, authHeader string) (string, int, http.Header, error) {
	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.url(path), strings.NewReader(encodeForm(form)))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.url(path), nil)
	}
	if err != nil {
		return "", 0, nil, err
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, nil, err
	}
	return string(data), resp.StatusCode, resp.Header, nil
}

func encodeForm(form map[string]string) string {
	var b strings.Builder
	first := true
	for k, v := range form {
		if !first {
			b.WriteByte('&')
		}
		first = false
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	return b.String()
}

// htmlAttr fetches an attribute value off a token, "" if absent.
func htmlAttr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// scrapeSnapshot walks the bounded fragments of an HQPlayer web UI
// page this client cares about: <select> option lists plus their
// currently selected value, and the volume, title and _xsrf inputs;
// other hidden inputs are not captured. Parsed with a real HTML
// tokenizer rather than pattern matching against raw markup, since the
// page is neither well-formed nor guaranteed stable across firmware
// revisions.
func scrapeSnapshot(doc string) WebSnapshot {
	snap := WebSnapshot{
		Options: make(map[string][]ProfileOption),
		Current: make(map[string]string),
	}

	z := html.NewTokenizer(strings.NewReader(doc))
	var curSelect string
	var curIndex int

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.Data {
			case "select":
				if name, ok := htmlAttr(tok, "name"); ok {
					curSelect = name
					curIndex = 0
					if _, exists := snap.Options[name]; !exists {
						snap.Options[name] = nil
					}
				}
			case "option":
				if curSelect == "" {
					continue
				}
				value, _ := htmlAttr(tok, "value")
				_, selected := htmlAttr(tok, "selected")
				label := strings.TrimSpace(nextText(z))
				snap.Options[curSelect] = append(snap.Options[curSelect], ProfileOption{
					Value: value,
					Index: curIndex,
					Label: label,
				})
				if selected {
					snap.Current[curSelect] = value
				}
				curIndex++
			case "input":
				name, _ := htmlAttr(tok, "name")
				value, _ := htmlAttr(tok, "value")
				switch name {
				case "_xsrf":
					snap.XSRFToken = value
				case "title":
					snap.Title = value
				case "volume":
					if v, err := strconv.ParseFloat(value, 64); err == nil {
						snap.Volume = v
					}
				}
			}
		case html.EndTagToken:
			if tok.Data == "select" {
				curSelect = ""
			}
		}
	}

	if opts, ok := snap.Options["profile"]; ok {
		snap.ProfileSel = make([]string, len(opts))
		for i, o := range opts {
			snap.ProfileSel[i] = o.Value
		}
	}
	return snap
}

// nextText returns the text content of the token immediately following
// the tokenizer's current position, consuming it. Used to read an
// <option>'s label without a second pass over the document.
func nextText(z *html.Tokenizer) string {
	if z.Next() == html.TextToken {
		return string(z.Text())
	}
	return ""
}

// FetchSnapshot scrapes the live pipeline/profile state from "/".
func (c *WebClient) FetchSnapshot(ctx context.Context) (WebSnapshot, error) {
	page, err := c.get(ctx, "/")
	if err != nil {
		return WebSnapshot{}, err
	}
	return scrapeSnapshot(page), nil
}

// ListProfiles scrapes the profile <select> and the _xsrf token from
// /config/profile/load.
func (c *WebClient) ListProfiles(ctx context.Context) (WebSnapshot, error) {
	page, err := c.get(ctx, "/config/profile/load")
	if err != nil {
		return WebSnapshot{}, err
	}
	return scrapeSnapshot(page), nil
}

// LoadProfile posts the chosen profile value along with the
// previously scraped _xsrf token; no other hidden form fields are
// sent. HQPlayer restarts after this
// succeeds; callers get ok as soon as the POST returns (spec.md §4.3).
func (c *WebClient) LoadProfile(ctx context.Context, snap WebSnapshot, value string) error {
	form := map[string]string{"profile": value}
	if snap.XSRFToken != "" {
		form["_xsrf"] = snap.XSRFToken
	}
	_, err := c.postForm(ctx, "/config/profile/load", form)
	return err
}
