package upnp

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"
)

// deviceDescription is the subset of a UPnP device description document
// this adapter needs: identity and the two control URLs it drives.
type deviceDescription struct {
	UDN          string `xml:"device>UDN"`
	FriendlyName string `xml:"device>friendlyName"`
	ServiceList  []struct {
		ServiceType string `xml:"serviceType"`
		ControlURL  string `xml:"controlURL"`
	} `xml:"device>serviceList>service"`
}

func (d deviceDescription) serviceControlURL(serviceType string) string {
	for _, s := range d.ServiceList {
		if s.ServiceType == serviceType {
			return s.ControlURL
		}
	}
	return ""
}

func (d deviceDescription) avControlURL() string {
	return d.serviceControlURL(avTransportType)
}

func (d deviceDescription) rcControlURL() string {
	return d.serviceControlURL(renderingControlType)
}

func fetchDeviceDescription(ctx context.Context, location string) (deviceDescription, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return deviceDescription{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return deviceDescription{}, err
	}
	defer resp.Body.Close()

	var desc deviceDescription
	if err := xml.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return deviceDescription{}, err
	}
	return desc, nil
}
