package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() AlertRecord {
	end := time.Date(2024, 1, 11, 13, 0, 0, 0, time.UTC)
	return AlertRecord{
		IdentityKey:  "3509502:1:chuva-intensa",
		AlertCode:    "1",
		CityCode:     testCityCode,
		EventType:    "chuva-intensa",
		Description:  "Chuva Intensa",
		StartDate:    time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC),
		EndDate:      &end,
		Latitude:     -22.9056,
		Longitude:    -47.0608,
		Risks:        []string{"Alagamento"},
		Instructions: []string{"Evite áreas alagadas."},
	}.WithSeverity(SeveritySevere)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		label    string
		expected Severity
	}{
		{"minor", SeverityMinor},
		{"Moderate", SeverityModerate},
		{"SEVERE", SeveritySevere},
		{" extreme ", SeverityExtreme},
		{"Perigo Potencial", SeverityModerate},
		{"perigo  potencial", SeverityModerate},
		{"Perigo", SeveritySevere},
		{"Grande Perigo", SeverityExtreme},
		{"GRANDE PERÍGO", SeverityExtreme},
		{"", SeverityUnknown},
		{"catastrophic", SeverityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSeverity(tt.label))
		})
	}
}

func TestSeverity_Ordering(t *testing.T) {
	assert.Less(t, SeverityUnknown, SeverityMinor)
	assert.Less(t, SeverityMinor, SeverityModerate)
	assert.Less(t, SeverityModerate, SeveritySevere)
	assert.Less(t, SeveritySevere, SeverityExtreme)
}

func TestSeverity_LookupTable(t *testing.T) {
	seenColors := map[string]Severity{}
	for _, s := range []Severity{SeverityUnknown, SeverityMinor, SeverityModerate, SeveritySevere, SeverityExtreme} {
		assert.NotEmpty(t, s.Color())
		assert.NotEmpty(t, s.Icon())
		prev, dup := seenColors[s.Color()]
		assert.False(t, dup, "%s shares color with %s", s, prev)
		seenColors[s.Color()] = s
	}

	out := Severity(42)
	assert.Equal(t, "unknown", out.String())
	assert.Equal(t, SeverityUnknown.Color(), out.Color())
	assert.Equal(t, SeverityUnknown.Icon(), out.Icon())
}

func TestSeverity_JSON(t *testing.T) {
	data, err := json.Marshal(SeverityExtreme)
	require.NoError(t, err)
	assert.JSONEq(t, `"extreme"`, string(data))

	var s Severity
	require.NoError(t, json.Unmarshal([]byte(`"moderate"`), &s))
	assert.Equal(t, SeverityModerate, s)

	require.Error(t, json.Unmarshal([]byte(`3`), &s))
}

func TestAlertRecord_WithSeverityDerivesPresentation(t *testing.T) {
	r := testRecord().WithSeverity(SeverityExtreme)
	assert.Equal(t, SeverityExtreme, r.Severity)
	assert.Equal(t, SeverityExtreme.Color(), r.Color)
	assert.Equal(t, SeverityExtreme.Icon(), r.Icon)
}

func TestAlertRecord_EndedBy(t *testing.T) {
	r := testRecord()
	assert.False(t, r.EndedBy(r.EndDate.Add(-time.Minute)))
	assert.True(t, r.EndedBy(*r.EndDate), "end date is inclusive")
	assert.True(t, r.EndedBy(r.EndDate.Add(time.Hour)))

	r.EndDate = nil
	assert.False(t, r.EndedBy(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAlertRecord_CloneIsDeep(t *testing.T) {
	orig := testRecord()
	c := orig.Clone()
	require.True(t, orig.Equal(c))

	c.Risks[0] = "changed"
	c.Instructions[0] = "changed"
	*c.EndDate = c.EndDate.Add(time.Hour)

	assert.Equal(t, "Alagamento", orig.Risks[0])
	assert.Equal(t, "Evite áreas alagadas.", orig.Instructions[0])
	assert.Equal(t, time.Date(2024, 1, 11, 13, 0, 0, 0, time.UTC), *orig.EndDate)
}

func TestAlertRecord_Equal(t *testing.T) {
	base := testRecord()

	t.Run("same instant in other zone", func(t *testing.T) {
		other := base.Clone()
		other.StartDate = other.StartDate.In(brasilia)
		end := other.EndDate.In(brasilia)
		other.EndDate = &end
		assert.True(t, base.Equal(other))
	})

	t.Run("nil and empty lists", func(t *testing.T) {
		a, b := base.Clone(), base.Clone()
		a.Instructions = nil
		b.Instructions = []string{}
		assert.True(t, a.Equal(b))
	})

	mutations := map[string]func(r *AlertRecord){
		"description":  func(r *AlertRecord) { r.Description = "Chuvas Intensas" },
		"severity":     func(r *AlertRecord) { *r = r.WithSeverity(SeverityExtreme) },
		"start":        func(r *AlertRecord) { r.StartDate = r.StartDate.Add(time.Minute) },
		"end":          func(r *AlertRecord) { e := r.EndDate.Add(time.Hour); r.EndDate = &e },
		"open-ended":   func(r *AlertRecord) { r.EndDate = nil },
		"risks":        func(r *AlertRecord) { r.Risks = append(r.Risks, "Queda de árvores") },
		"instructions": func(r *AlertRecord) { r.Instructions = nil },
		"url":          func(r *AlertRecord) { r.URL = "https://alertas2.inmet.gov.br/1" },
		"future":       func(r *AlertRecord) { r.Future = true },
		"sequence":     func(r *AlertRecord) { r.Sequence = 2 },
		"amended":      func(r *AlertRecord) { r.Amended = true },
		"closed":       func(r *AlertRecord) { r.Closed = true },
		"latitude":     func(r *AlertRecord) { r.Latitude = 0 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			other := base.Clone()
			mutate(&other)
			assert.False(t, base.Equal(other))
			assert.False(t, other.Equal(base))
		})
	}
}

func TestNonBlank(t *testing.T) {
	assert.Equal(t, []string{"Alagamento", "Queda de árvores"}, NonBlank([]string{"", "Alagamento", "  ", "Queda de árvores", "\t"}))
	assert.Empty(t, NonBlank(nil))
}
