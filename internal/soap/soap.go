// Package soap is a minimal SOAP 1.1 client for UPnP/OpenHome control
// points: build an envelope, POST it with the right SOAPACTION header,
// and unmarshal the response body. Grounded on the bus's UPnP-family
// adapters' need for AVTransport/RenderingControl-style SOAP calls, in
// the shape of the sonos-hub-go reference package of the same name
// (internal/sonos/soap) — stdlib encoding/xml + net/http, no SOAP
// framework dependency exists in the example pack.
package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client issues SOAP actions against a single control URL.
type Client struct {
	HTTP       *http.Client
	ControlURL string
}

// NewClient builds a soap.Client with a sane request timeout.
func NewClient(controlURL string) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: 5 * time.Second},
		ControlURL: controlURL,
	}
}

// Call invokes action in the given serviceType, with bodyXML as the
// already-serialized <u:Action> element contents, and decodes the
// response body into out (if non-nil).
func (c *Client) Call(ctx context.Context, serviceType, action, bodyXML string, out interface{}) error {
	soapAction := fmt.Sprintf("%q", serviceType+"#"+action)
	payload := fmt.Sprintf(xmlEnvelopeTemplate, bodyXML)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ControlURL, bytes.NewBufferString(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", soapAction)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return &Fault{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}

	var env struct {
		Body struct {
			Inner []byte `xml:",innerxml"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("soap: decode envelope: %w", err)
	}
	return xml.Unmarshal(env.Body.Inner, out)
}

// Fault is returned when a SOAP call answers with a non-2xx status.
type Fault struct {
	StatusCode int
	Body       string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap: fault (status %d): %s", f.StatusCode, f.Body)
}

const xmlEnvelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>
%s
</s:Body>
</s:Envelope>`
