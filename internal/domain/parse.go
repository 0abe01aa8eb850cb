package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// brasilia is the zone INMET timestamps are published in. Brazil has not
// observed daylight saving time since 2019, so a fixed offset is exact.
var brasilia = time.FixedZone("BRT", -3*60*60)

// timestampLayouts are tried in order when parsing "inicio" and "fim".
var timestampLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// rawPayload is the body of GET /avisos/ativos. The feed is national, so
// entries stay raw until their geocodes show they affect the city.
type rawPayload struct {
	Today  []json.RawMessage `json:"hoje"`
	Future []json.RawMessage `json:"futuro"`
}

// rawGeocodes is decoded from every entry to filter by city.
type rawGeocodes struct {
	Geocodes string `json:"geocodes"`
}

// rawAlert is one entry of the feed. Field names follow the upstream API.
type rawAlert struct {
	ID           flexString `json:"id"`
	Sequence     flexInt    `json:"id_sequencia"`
	Description  string     `json:"descricao"`
	Severity     string     `json:"severidade"`
	SeverityID   flexInt    `json:"id_severidade"`
	Risks        stringList `json:"riscos"`
	Instructions stringList `json:"instrucoes"`
	Amended      bool       `json:"alterado"`
	Closed       bool       `json:"encerrado"`
	Start        string     `json:"inicio"`
	End          string     `json:"fim"`
	Geocodes     string     `json:"geocodes"`
	URL          string     `json:"url"`
}

// Parser converts feed payloads into AlertRecords. The zero value is usable.
type Parser struct {
	// DetailBaseURL, when set, is used to derive a record's URL as
	// "<DetailBaseURL>/<alert code>" for alerts the payload gives no link for.
	DetailBaseURL string
}

// Parse decodes raw and returns the records that affect city, in feed order
// ("hoje" entries first, then "futuro"). Records carry the city's coordinates.
//
// Any structural problem, or an affecting alert with an unusable identity or
// validity window, fails the whole payload with a *MalformedSourceError.
// Missing risks, instructions and url are not errors.
func (p Parser) Parse(raw []byte, city City) ([]AlertRecord, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	records := make([]AlertRecord, 0)
	for _, section := range []struct {
		alerts []json.RawMessage
		future bool
	}{
		{payload.Today, false},
		{payload.Future, true},
	} {
		for i, entry := range section.alerts {
			var g rawGeocodes
			if err := json.Unmarshal(entry, &g); err != nil {
				return nil, malformed(err, "geocodes of alert %d in %s", i, sectionName(section.future))
			}
			if !affects(g.Geocodes, city.Code) {
				continue
			}
			var a rawAlert
			if err := json.Unmarshal(entry, &a); err != nil {
				return nil, malformed(err, "decode alert %d in %s", i, sectionName(section.future))
			}
			rec, err := p.toRecord(a, city, section.future)
			if err != nil {
				return nil, malformed(err, "alert %d in %s", i, sectionName(section.future))
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func decodePayload(raw []byte) (rawPayload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return rawPayload{}, malformed(nil, "empty payload")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rawPayload{}, malformed(err, "decode payload")
	}
	_, hasToday := fields["hoje"]
	_, hasFuture := fields["futuro"]
	if !hasToday && !hasFuture {
		return rawPayload{}, malformed(nil, `payload has neither "hoje" nor "futuro"`)
	}

	var payload rawPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return rawPayload{}, malformed(err, "decode alerts")
	}
	return payload, nil
}

func (p Parser) toRecord(a rawAlert, city City, future bool) (AlertRecord, error) {
	code := strings.TrimSpace(string(a.ID))
	if code == "" {
		return AlertRecord{}, errors.New("missing id")
	}
	description := strings.TrimSpace(a.Description)
	if description == "" {
		return AlertRecord{}, errors.New("missing descricao")
	}

	start, err := parseTimestamp(a.Start)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("inicio: %w", err)
	}
	var end *time.Time
	if strings.TrimSpace(a.End) != "" {
		e, err := parseTimestamp(a.End)
		if err != nil {
			return AlertRecord{}, fmt.Errorf("fim: %w", err)
		}
		if e.Before(start) {
			return AlertRecord{}, fmt.Errorf("fim %s before inicio %s", a.End, a.Start)
		}
		end = &e
	}

	severity := ParseSeverity(a.Severity)
	if severity == SeverityUnknown {
		severity = severityFromID(int(a.SeverityID))
	}

	url := strings.TrimSpace(a.URL)
	if url == "" && p.DetailBaseURL != "" {
		url = strings.TrimRight(p.DetailBaseURL, "/") + "/" + code
	}

	eventType := EventTypeKey(description)
	rec := AlertRecord{
		IdentityKey:   IdentityKey(code, city.Code, eventType),
		AlertCode:     code,
		CityCode:      city.Code,
		EventType:     eventType,
		Description:   description,
		SeverityLabel: strings.TrimSpace(a.Severity),
		StartDate:     start,
		EndDate:       end,
		Latitude:      city.Latitude,
		Longitude:     city.Longitude,
		Risks:         nonNil(a.Risks),
		Instructions:  nonNil(a.Instructions),
		URL:           url,
		Future:        future,
		Sequence:      int(a.Sequence),
		Amended:       a.Amended,
		Closed:        a.Closed,
	}
	return rec.WithSeverity(severity), nil
}

// affects reports whether the comma-separated geocode list contains code.
func affects(geocodes, code string) bool {
	for _, g := range strings.Split(geocodes, ",") {
		if strings.TrimSpace(g) == code {
			return true
		}
	}
	return false
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, brasilia); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func sectionName(future bool) string {
	if future {
		return "futuro"
	}
	return "hoje"
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or a numeric string. Blank values decode to 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if strings.TrimSpace(string(s)) == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		return fmt.Errorf("expected integer, got %s", data)
	}
	*f = flexInt(n)
	return nil
}

// stringList accepts a JSON array of strings, a single string or null.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("expected string list, got %s", data)
	}
	*l = []string{single}
	return nil
}
