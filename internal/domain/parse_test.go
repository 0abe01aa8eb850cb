package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCityCode = "3509502"

var campinas = City{Code: testCityCode, Name: "Campinas", Latitude: -22.9056, Longitude: -47.0608}

const testPayload = `{
  "hoje": [
    {
      "id": 12345,
      "id_sequencia": 1,
      "descricao": "Chuvas Intensas",
      "severidade": "Perigo",
      "id_severidade": 2,
      "riscos": ["Alagamento", ""],
      "instrucoes": ["Evite enfrentar o mau tempo."],
      "alterado": false,
      "encerrado": false,
      "inicio": "2024-01-10 10:00",
      "fim": "2024-01-11 10:00",
      "geocodes": "3509502,3550308"
    },
    {
      "id": 12346,
      "descricao": "Onda de Calor",
      "severidade": "Grande Perigo",
      "inicio": "2024-01-10 12:00",
      "fim": "2024-01-13 18:00",
      "geocodes": "3550308"
    }
  ],
  "futuro": [
    {
      "id": "12400",
      "id_sequencia": "3",
      "descricao": "Tempestade",
      "severidade": "Perigo Potencial",
      "inicio": "2024-01-12 00:00",
      "fim": "",
      "geocodes": "3304557, 3509502",
      "url": "https://example.test/12400"
    }
  ]
}`

func TestParse(t *testing.T) {
	records, err := Parser{DetailBaseURL: "https://alertas2.inmet.gov.br/"}.Parse([]byte(testPayload), campinas)
	require.NoError(t, err)
	require.Len(t, records, 2, "alert for 3550308 only must be filtered out")

	t.Run("today alert", func(t *testing.T) {
		r := records[0]
		assert.Equal(t, "12345", r.AlertCode)
		assert.Equal(t, testCityCode, r.CityCode)
		assert.Equal(t, "chuva-intensa", r.EventType)
		assert.Equal(t, "3509502:12345:chuva-intensa", r.IdentityKey)
		assert.Equal(t, "Chuvas Intensas", r.Description)
		assert.Equal(t, SeveritySevere, r.Severity)
		assert.Equal(t, "Perigo", r.SeverityLabel)
		assert.Equal(t, SeveritySevere.Color(), r.Color)
		assert.Equal(t, SeveritySevere.Icon(), r.Icon)
		assert.Equal(t, time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC), r.StartDate.UTC())
		require.NotNil(t, r.EndDate)
		assert.Equal(t, time.Date(2024, 1, 11, 13, 0, 0, 0, time.UTC), r.EndDate.UTC())
		assert.Equal(t, campinas.Latitude, r.Latitude)
		assert.Equal(t, campinas.Longitude, r.Longitude)
		assert.Equal(t, []string{"Alagamento", ""}, r.Risks, "blank entries are preserved")
		assert.Equal(t, []string{"Evite enfrentar o mau tempo."}, r.Instructions)
		assert.Equal(t, "https://alertas2.inmet.gov.br/12345", r.URL)
		assert.False(t, r.Future)
		assert.Equal(t, 1, r.Sequence)
	})

	t.Run("future alert", func(t *testing.T) {
		r := records[1]
		assert.Equal(t, "12400", r.AlertCode)
		assert.True(t, r.Future)
		assert.Equal(t, 3, r.Sequence)
		assert.Equal(t, SeverityModerate, r.Severity)
		assert.Nil(t, r.EndDate, "empty fim is open-ended")
		assert.True(t, r.OpenEnded())
		assert.Equal(t, "https://example.test/12400", r.URL)
		assert.NotNil(t, r.Risks)
		assert.Empty(t, r.Risks)
		assert.NotNil(t, r.Instructions)
		assert.Empty(t, r.Instructions)
	})
}

func TestParse_OptionalFieldsMissing(t *testing.T) {
	payload := `{"hoje":[{"id":1,"descricao":"Ventania","severidade":"severe","inicio":"2024-01-10 10:00","fim":"2024-01-10 20:00","geocodes":"3509502"}]}`

	records, err := Parser{}.Parse([]byte(payload), campinas)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{}, records[0].Risks)
	assert.Equal(t, []string{}, records[0].Instructions)
	assert.Empty(t, records[0].URL, "zero Parser derives no URL")
}

func TestParse_SingleStringLists(t *testing.T) {
	payload := `{"futuro":[{"id":1,"descricao":"Ventania","riscos":"Queda de árvores","instrucoes":null,"inicio":"2024-01-10 10:00","geocodes":"3509502"}]}`

	records, err := Parser{}.Parse([]byte(payload), campinas)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Queda de árvores"}, records[0].Risks)
	assert.Equal(t, []string{}, records[0].Instructions)
}

func TestParse_SeverityFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		id       string
		expected Severity
	}{
		{"portuguese label", "Grande Perigo", "0", SeverityExtreme},
		{"upper case", "PERIGO POTENCIAL", "0", SeverityModerate},
		{"english label", "Minor", "0", SeverityMinor},
		{"unknown label uses id", "Aviso Especial", "3", SeverityExtreme},
		{"unknown label and id", "Aviso Especial", "9", SeverityUnknown},
		{"missing label", "", "0", SeverityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"hoje":[{"id":1,"descricao":"Ventania","severidade":"` + tt.severity +
				`","id_severidade":` + tt.id + `,"inicio":"2024-01-10 10:00","geocodes":"3509502"}]}`
			records, err := Parser{}.Parse([]byte(payload), campinas)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.expected, records[0].Severity)
			assert.Equal(t, tt.expected.Color(), records[0].Color)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"truncated", `{"hoje":[{"id":1,"descricao":`},
		{"not an object", `[1,2,3]`},
		{"null", `null`},
		{"unexpected schema", `{"alerts":[]}`},
		{"hoje not a list", `{"hoje":"none"}`},
		{"missing id", `{"hoje":[{"descricao":"Ventania","inicio":"2024-01-10 10:00","geocodes":"3509502"}]}`},
		{"missing description", `{"hoje":[{"id":1,"inicio":"2024-01-10 10:00","geocodes":"3509502"}]}`},
		{"missing start", `{"hoje":[{"id":1,"descricao":"Ventania","geocodes":"3509502"}]}`},
		{"bad start", `{"hoje":[{"id":1,"descricao":"Ventania","inicio":"yesterday","geocodes":"3509502"}]}`},
		{"end before start", `{"hoje":[{"id":1,"descricao":"Ventania","inicio":"2024-01-10 10:00","fim":"2024-01-09 10:00","geocodes":"3509502"}]}`},
		{"bad sequence", `{"hoje":[{"id":1,"id_sequencia":"x","descricao":"Ventania","inicio":"2024-01-10 10:00","geocodes":"3509502"}]}`},
		{"entry not an object", `{"hoje":[42]}`},
		{"geocodes not a string", `{"hoje":[{"id":1,"descricao":"Ventania","inicio":"2024-01-10 10:00","geocodes":[3509502]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Parser{}.Parse([]byte(tt.payload), campinas)
			require.Error(t, err)
			assert.Nil(t, records)

			var me *MalformedSourceError
			assert.True(t, errors.As(err, &me), "expected *MalformedSourceError, got %T", err)
			assert.True(t, IsTransient(err))
		})
	}
}

func TestParse_OtherCityProblemsIgnored(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"bad start", `{"hoje":[{"id":1,"descricao":"Ventania","inicio":"garbage","geocodes":"3550308"}],"futuro":[]}`},
		{"bad sequence type", `{"hoje":[{"id":2,"id_sequencia":"x","descricao":"Ventania","inicio":"2024-01-10 10:00","geocodes":"3550308"}],"futuro":[]}`},
		{"bad risks type", `{"hoje":[],"futuro":[{"id":3,"descricao":"Ventania","riscos":{"a":1},"inicio":"2024-01-10 10:00","geocodes":"3550308"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Parser{}.Parse([]byte(tt.payload), campinas)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestParse_OtherCityBadFieldDoesNotHideCityAlert(t *testing.T) {
	payload := `{"hoje":[
		{"id":1,"id_sequencia":1,"descricao":"Chuvas Intensas","severidade":"Perigo","inicio":"2024-01-10 10:00","fim":"2024-01-11 10:00","geocodes":"3509502"},
		{"id":2,"id_sequencia":"x","descricao":"Onda de Calor","severidade":"Perigo","inicio":"2024-01-10 10:00","geocodes":"3550308"}
	],"futuro":[]}`

	records, err := Parser{}.Parse([]byte(payload), campinas)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].AlertCode)
}

func TestParse_EmptyFeed(t *testing.T) {
	records, err := Parser{}.Parse([]byte(`{"hoje":[],"futuro":[]}`), campinas)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
		wantErr  bool
	}{
		{"minutes", "2024-01-10 10:00", time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC), false},
		{"seconds", "2024-01-10 10:00:30", time.Date(2024, 1, 10, 13, 0, 30, 0, time.UTC), false},
		{"iso local", "2024-01-10T10:00:00", time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC), false},
		{"rfc3339 keeps offset", "2024-01-10T10:00:00Z", time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), false},
		{"padded", "  2024-01-10 10:00 ", time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC), false},
		{"empty", "", time.Time{}, true},
		{"garbage", "10/01/2024", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "want %s, got %s", tt.expected, got)
		})
	}
}

func TestAffects(t *testing.T) {
	assert.True(t, affects("3509502", testCityCode))
	assert.True(t, affects("3550308, 3509502 ,3304557", testCityCode))
	assert.False(t, affects("35095020", testCityCode))
	assert.False(t, affects("", testCityCode))
}
