package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Severity is the ordered alert severity scale. The zero value is SeverityUnknown,
// which is what unrecognized upstream labels map to.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityMinor
	SeverityModerate
	SeveritySevere
	SeverityExtreme
)

// presentation holds the attributes derived from a severity tier.
type presentation struct {
	name  string
	color string
	icon  string
}

// severityTable is the fixed lookup from severity to display attributes.
// Colors follow the INMET warning palette (yellow, orange, red).
var severityTable = map[Severity]presentation{
	SeverityUnknown:  {name: "unknown", color: "#9E9E9E", icon: "mdi:alert-circle-outline"},
	SeverityMinor:    {name: "minor", color: "#FFFF99", icon: "mdi:information-outline"},
	SeverityModerate: {name: "moderate", color: "#FFD700", icon: "mdi:alert-outline"},
	SeveritySevere:   {name: "severe", color: "#FF8C00", icon: "mdi:alert"},
	SeverityExtreme:  {name: "extreme", color: "#FF0000", icon: "mdi:alert-octagon"},
}

func (s Severity) String() string {
	if p, ok := severityTable[s]; ok {
		return p.name
	}
	return severityTable[SeverityUnknown].name
}

// Color returns the display color for the severity.
func (s Severity) Color() string {
	if p, ok := severityTable[s]; ok {
		return p.color
	}
	return severityTable[SeverityUnknown].color
}

// Icon returns the Material Design icon name for the severity.
func (s Severity) Icon() string {
	if p, ok := severityTable[s]; ok {
		return p.icon
	}
	return severityTable[SeverityUnknown].icon
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("unmarshal severity: %w", err)
	}
	*s = ParseSeverity(label)
	return nil
}

// severityLabels maps folded labels (lowercase, no accents) to tiers. Both the
// English scale and INMET's Portuguese labels are accepted.
var severityLabels = map[string]Severity{
	"minor":            SeverityMinor,
	"moderate":         SeverityModerate,
	"severe":           SeveritySevere,
	"extreme":          SeverityExtreme,
	"perigo potencial": SeverityModerate,
	"perigo":           SeveritySevere,
	"grande perigo":    SeverityExtreme,
}

// ParseSeverity normalizes an upstream severity label. Matching ignores case,
// accents and surrounding whitespace. Unrecognized labels return SeverityUnknown.
func ParseSeverity(label string) Severity {
	if s, ok := severityLabels[strings.Join(strings.Fields(fold(label)), " ")]; ok {
		return s
	}
	return SeverityUnknown
}

// severityFromID maps INMET's numeric id_severidade (1 = Perigo Potencial,
// 2 = Perigo, 3 = Grande Perigo). It is only consulted when the label is not recognized.
func severityFromID(id int) Severity {
	switch id {
	case 1:
		return SeverityModerate
	case 2:
		return SeveritySevere
	case 3:
		return SeverityExtreme
	default:
		return SeverityUnknown
	}
}

// AlertRecord is the canonical form of one alert for one municipality.
// Records are values: the slices are never modified after construction, and
// everything that hands a record across a package boundary does so via Clone.
type AlertRecord struct {
	IdentityKey   string     `json:"identity_key"`
	AlertCode     string     `json:"alert_code"`
	CityCode      string     `json:"city_code"`
	EventType     string     `json:"event_type"`
	Description   string     `json:"description"`
	Severity      Severity   `json:"severity"`
	SeverityLabel string     `json:"severity_label,omitempty"`
	Color         string     `json:"color"`
	Icon          string     `json:"icon"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	Risks         []string   `json:"risks"`
	Instructions  []string   `json:"instructions"`
	URL           string     `json:"url"`
	Future        bool       `json:"future"`
	Sequence      int        `json:"sequence,omitempty"`
	Amended       bool       `json:"amended"`
	Closed        bool       `json:"closed"`
}

// WithSeverity returns a copy with the severity and its derived color and icon set.
func (r AlertRecord) WithSeverity(s Severity) AlertRecord {
	r.Severity = s
	r.Color = s.Color()
	r.Icon = s.Icon()
	return r
}

// OpenEnded reports whether the alert has no stated end.
func (r AlertRecord) OpenEnded() bool {
	return r.EndDate == nil
}

// EndedBy reports whether the alert's stated validity window is over at now.
// Open-ended alerts never end by time.
func (r AlertRecord) EndedBy(now time.Time) bool {
	return r.EndDate != nil && !r.EndDate.After(now)
}

// Clone returns a deep copy that shares no memory with r.
func (r AlertRecord) Clone() AlertRecord {
	c := r
	c.Risks = slices.Clone(r.Risks)
	c.Instructions = slices.Clone(r.Instructions)
	if r.EndDate != nil {
		end := *r.EndDate
		c.EndDate = &end
	}
	return c
}

// Equal reports whether two records are equal field by field. Timestamps are
// compared as instants and nil sequences equal empty ones.
func (r AlertRecord) Equal(o AlertRecord) bool {
	return r.IdentityKey == o.IdentityKey &&
		r.AlertCode == o.AlertCode &&
		r.CityCode == o.CityCode &&
		r.EventType == o.EventType &&
		r.Description == o.Description &&
		r.Severity == o.Severity &&
		r.SeverityLabel == o.SeverityLabel &&
		r.Color == o.Color &&
		r.Icon == o.Icon &&
		r.StartDate.Equal(o.StartDate) &&
		equalEnd(r.EndDate, o.EndDate) &&
		r.Latitude == o.Latitude &&
		r.Longitude == o.Longitude &&
		slices.Equal(r.Risks, o.Risks) &&
		slices.Equal(r.Instructions, o.Instructions) &&
		r.URL == o.URL &&
		r.Future == o.Future &&
		r.Sequence == o.Sequence &&
		r.Amended == o.Amended &&
		r.Closed == o.Closed
}

func equalEnd(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// NonBlank returns the entries of values that contain more than whitespace.
// Presentation layers use it; records themselves keep upstream sequences intact.
func NonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
