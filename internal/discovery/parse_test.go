package discovery

import (
	"errors"
	"strings"
	"testing"
)

const sampleManifest = `<?xml version="1.0" encoding="utf-8"?>
<wopi-discovery>
  <net-zone name="external-http">
    <app name="text/plain">
      <action default="true" ext="txt" name="edit" urlsrc="https://office.example/browser/abc/cool.html?"/>
    </app>
    <app name="application/vnd.oasis.opendocument.text">
      <action ext="odt" name="view" urlsrc="https://office.example/browser/abc/cool.html?view"/>
      <action ext="odt" name="edit" urlsrc="https://office.example/browser/abc/cool.html?"/>
    </app>
  </net-zone>
</wopi-discovery>`

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	first := records[0]
	if first.ContentType != "text/plain" || first.Extension != "txt" || first.Action != "edit" {
		t.Errorf("Unexpected first record: %+v", first)
	}
	if first.URL != "https://office.example/browser/abc/cool.html?" {
		t.Errorf("Unexpected URL: %s", first.URL)
	}
	if records[1].Action != "view" || records[2].Action != "edit" {
		t.Errorf("Expected one record per action, got %+v", records[1:])
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not xml", "{not: xml}"},
		{"truncated", "<wopi-discovery><net-zone><app name=\"a\">"},
		{"missing urlsrc", `<wopi-discovery><net-zone><app name="text/plain"><action name="edit" ext="txt"/></app></net-zone></wopi-discovery>`},
		{"missing action name", `<wopi-discovery><net-zone><app name="text/plain"><action ext="txt" urlsrc="http://x/"/></app></net-zone></wopi-discovery>`},
		{"missing app name", `<wopi-discovery><net-zone><app><action name="edit" urlsrc="http://x/"/></app></net-zone></wopi-discovery>`},
		{"empty", `<wopi-discovery></wopi-discovery>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.body))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got %v", err)
			}
		})
	}
}
