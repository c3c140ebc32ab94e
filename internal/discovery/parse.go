package discovery

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/jun/wopigate/internal/model"
)

// ErrMalformed is returned when the discovery manifest cannot be used.
var ErrMalformed = errors.New("malformed discovery manifest")

type manifest struct {
	XMLName  xml.Name  `xml:"wopi-discovery"`
	NetZones []netZone `xml:"net-zone"`
}

type netZone struct {
	Name string `xml:"name,attr"`
	Apps []app  `xml:"app"`
}

type app struct {
	Name    string   `xml:"name,attr"`
	Actions []action `xml:"action"`
}

type action struct {
	Name   string `xml:"name,attr"`
	Ext    string `xml:"ext,attr"`
	URLSrc string `xml:"urlsrc,attr"`
}

// Parse decodes a discovery manifest into one record per (content type, action).
// A missing app name, action name or urlsrc rejects the whole manifest.
func Parse(r io.Reader) ([]model.DiscoveryRecord, error) {
	var m manifest
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var records []model.DiscoveryRecord
	seen := make(map[string]bool)
	for _, zone := range m.NetZones {
		for _, a := range zone.Apps {
			if a.Name == "" {
				return nil, fmt.Errorf("%w: app without name", ErrMalformed)
			}
			for _, act := range a.Actions {
				if act.Name == "" || act.URLSrc == "" {
					return nil, fmt.Errorf("%w: incomplete action in app %q", ErrMalformed, a.Name)
				}
				key := a.Name + "\x00" + act.Name
				if seen[key] {
					continue
				}
				seen[key] = true
				records = append(records, model.DiscoveryRecord{
					ContentType: a.Name,
					Extension:   act.Ext,
					Action:      act.Name,
					URL:         act.URLSrc,
				})
			}
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no actions", ErrMalformed)
	}
	return records, nil
}
