// Command genmock writes a deterministic mock of the INMET active-alerts feed
// (GET /avisos/ativos) for tests and local runs, and optionally the resolved
// alert set each region should end up with after one poll of it. It uses the
// real domain parser and resolver so the expected output matches what the
// service computes.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -payload-out /tmp/avisos_ativos.json \
//	  -expected-out /tmp/avisos_ativos_expected.json \
//	  -regions 3509502,3550308
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
)

// mockAlert mirrors one upstream feed entry.
type mockAlert struct {
	ID           int      `json:"id"`
	Sequence     int      `json:"id_sequencia"`
	Description  string   `json:"descricao"`
	Severity     string   `json:"severidade"`
	SeverityID   int      `json:"id_severidade"`
	Color        string   `json:"aviso_cor"`
	Risks        []string `json:"riscos"`
	Instructions []string `json:"instrucoes"`
	Amended      bool     `json:"alterado"`
	Closed       bool     `json:"encerrado"`
	Start        string   `json:"inicio"`
	End          string   `json:"fim"`
	Geocodes     string   `json:"geocodes"`
}

type mockPayload struct {
	Today  []mockAlert `json:"hoje"`
	Future []mockAlert `json:"futuro"`
}

// mockCities are the representative points used for the expected output.
var mockCities = map[string]domain.City{
	"3509502": {Code: "3509502", Name: "Campinas - SP", Latitude: -22.9056, Longitude: -47.0608},
	"3550308": {Code: "3550308", Name: "São Paulo - SP", Latitude: -23.5505, Longitude: -46.6333},
	"4106902": {Code: "4106902", Name: "Curitiba - PR", Latitude: -25.4284, Longitude: -49.2733},
}

// mockFeed returns the fixture feed. Alert 50001 is published twice with
// different sequences for Campinas so that the resolver has something to merge.
func mockFeed() mockPayload {
	return mockPayload{
		Today: []mockAlert{
			{
				ID: 50001, Sequence: 1, Description: "Chuvas Intensas",
				Severity: "Perigo Potencial", SeverityID: 1, Color: "#FFFF00",
				Risks:        []string{"Alagamento", "Descargas elétricas"},
				Instructions: []string{"Evite enfrentar o mau tempo.", ""},
				Start:        "2024-01-10 10:00", End: "2024-01-11 10:00",
				Geocodes: "3509502,3550308,3518800",
			},
			{
				ID: 50001, Sequence: 2, Description: "Chuva Intensa",
				Severity: "Perigo", SeverityID: 2, Color: "#FFA500",
				Risks:        []string{"Alagamento", "Queda de árvores"},
				Instructions: []string{"Desligue aparelhos elétricos."},
				Amended:      true,
				Start:        "2024-01-10 14:00", End: "2024-01-11 10:00",
				Geocodes: "3509502",
			},
			{
				ID: 50002, Sequence: 1, Description: "Onda de Calor",
				Severity: "Grande Perigo", SeverityID: 3, Color: "#FF0000",
				Risks:        []string{"Insolação"},
				Instructions: []string{"Beba bastante líquido."},
				Start:        "2024-01-10 08:00", End: "",
				Geocodes: "3550308",
			},
		},
		Future: []mockAlert{
			{
				ID: 50010, Sequence: 1, Description: "Baixa Umidade",
				Severity: "Perigo Potencial", SeverityID: 1, Color: "#FFFF00",
				Risks:        []string{"Incêndios florestais"},
				Instructions: []string{},
				Start:        "2024-01-12 12:00", End: "2024-01-12 20:00",
				Geocodes: "3509502,3552205",
			},
			{
				ID: 50011, Sequence: 1, Description: "Vendaval",
				Severity: "", SeverityID: 3, Color: "#FF0000",
				Start: "2024-01-12 00:00", End: "2024-01-13 00:00",
				Geocodes: "4106902",
			},
		},
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	payloadOut := flag.String("payload-out", "", "output path for the mock feed payload")
	expectedOut := flag.String("expected-out", "", "optional output path for the expected resolved alerts per region")
	regions := flag.String("regions", "3509502,3550308", "comma-separated city codes for -expected-out")
	detailURL := flag.String("detail-url", "https://alertas2.inmet.gov.br", "base URL used to derive alert links")
	flag.Parse()

	if *payloadOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -payload-out")
	}

	payload, err := json.MarshalIndent(mockFeed(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := writeFile(*payloadOut, payload); err != nil {
		return fmt.Errorf("writing payload fixture: %w", err)
	}
	log.Printf("wrote payload fixture: %s", *payloadOut)

	if *expectedOut == "" {
		return nil
	}

	parser := domain.Parser{DetailBaseURL: *detailURL}
	expected := map[string][]domain.AlertRecord{}
	for _, code := range strings.Split(*regions, ",") {
		code = strings.TrimSpace(code)
		city, ok := mockCities[code]
		if !ok {
			return fmt.Errorf("no mock city for code %s", code)
		}
		records, err := parser.Parse(payload, city)
		if err != nil {
			return fmt.Errorf("parse for %s: %w", code, err)
		}
		resolved := domain.Resolve(records)
		expected[code] = resolved
		log.Printf("%s: %d records, %d after resolve", code, len(records), len(resolved))
	}

	data, err := json.MarshalIndent(expected, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal expected alerts: %w", err)
	}
	if err := writeFile(*expectedOut, data); err != nil {
		return fmt.Errorf("writing expected fixture: %w", err)
	}
	log.Printf("wrote expected fixture: %s", *expectedOut)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
