// Command validate checks a captured or generated INMET feed payload offline.
// It runs the payload through the same parse, resolve and reconcile steps the
// service uses for every city the payload mentions, and verifies the results
// against the alert lifecycle rules. When an expected-alerts fixture from
// genmock is given it also diffs the resolved output against it.
//
// The expected fixture is not checked in; generate it next to the payload
// first:
//
//	go run ./cmd/genmock \
//	  -payload-out /tmp/avisos_ativos.json \
//	  -expected-out /tmp/avisos_ativos_expected.json
//	go run ./cmd/validate \
//	  -payload /tmp/avisos_ativos.json \
//	  -expected /tmp/avisos_ativos_expected.json
//
// Without -expected only the parse, resolve and reconcile phases run:
//
//	go run ./cmd/validate -payload data/mock/avisos_ativos.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/couchcryptid/inmet-alerts/internal/reconcile"
	"github.com/google/go-cmp/cmp"
)

// validationTime is the fixed instant used for reconciliation checks.
var validationTime = time.Date(2024, time.January, 10, 15, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	payloadPath := flag.String("payload", "", "path to an /avisos/ativos payload")
	expectedPath := flag.String("expected", "", "optional path to genmock's expected alerts fixture")
	detailURL := flag.String("detail-url", "https://alertas2.inmet.gov.br", "base URL used to derive alert links")
	flag.Parse()

	if *payloadPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*payloadPath, *expectedPath, *detailURL); code != 0 {
		os.Exit(code)
	}
}

func run(payloadPath, expectedPath, detailURL string) int {
	fmt.Println("=== INMET Alert Payload Validation ===")
	fmt.Println()

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read payload: %v\n", err)
		return 1
	}

	codes, err := geocodes(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	parser := domain.Parser{DetailBaseURL: detailURL}
	resolved := map[string][]domain.AlertRecord{}

	phases := []*phase{
		validateParse(parser, payload, codes, resolved),
		validateResolve(parser, payload, codes),
		validateReconcile(resolved),
	}
	if expectedPath != "" {
		phases = append(phases, validateExpected(expectedPath, resolved))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	total := 0
	for _, records := range resolved {
		total += len(records)
	}
	fmt.Println()
	fmt.Printf("Cities: %d, resolved alerts: %d\n", len(codes), total)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// geocodes lists every city code the payload mentions, sorted.
func geocodes(payload []byte) ([]string, error) {
	var feed map[string][]struct {
		Geocodes string `json:"geocodes"`
	}
	if err := json.Unmarshal(payload, &feed); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	seen := map[string]bool{}
	for _, alerts := range feed {
		for _, a := range alerts {
			for _, g := range strings.Split(a.Geocodes, ",") {
				if g = strings.TrimSpace(g); g != "" {
					seen[g] = true
				}
			}
		}
	}

	codes := make([]string, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes, nil
}

// ── Phase 1: Parse ──

func validateParse(parser domain.Parser, payload []byte, codes []string, resolved map[string][]domain.AlertRecord) *phase {
	p := &phase{name: "Phase 1: Parse (every mentioned city)"}

	for _, code := range codes {
		if err := domain.ValidateCityCode(code); err != nil {
			p.errorf("geocode %q: %v", code, err)
			continue
		}
		records, err := parser.Parse(payload, domain.City{Code: code})
		if err != nil {
			var me *domain.MalformedSourceError
			if errors.As(err, &me) {
				p.errorf("city %s: %v", code, err)
			} else {
				p.errorf("city %s: unexpected error type %T: %v", code, err, err)
			}
			continue
		}
		if len(records) == 0 {
			p.errorf("city %s: mentioned in geocodes but parsed no alerts", code)
		}
		for _, r := range records {
			checkRecord(p, r)
		}
		resolved[code] = domain.Resolve(records)
	}
	return p
}

func checkRecord(p *phase, r domain.AlertRecord) {
	if r.IdentityKey == "" {
		p.errorf("alert %s: empty identity key", r.AlertCode)
	}
	if r.Severity == domain.SeverityUnknown {
		p.errorf("%s: severity %q not recognized", r.IdentityKey, r.SeverityLabel)
	}
	if r.Color != r.Severity.Color() || r.Icon != r.Severity.Icon() {
		p.errorf("%s: color/icon do not match severity %s", r.IdentityKey, r.Severity)
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		p.errorf("%s: end date before start date", r.IdentityKey)
	}
	if r.Risks == nil || r.Instructions == nil {
		p.errorf("%s: nil risks or instructions", r.IdentityKey)
	}
}

// ── Phase 2: Resolve ──

func validateResolve(parser domain.Parser, payload []byte, codes []string) *phase {
	p := &phase{name: "Phase 2: Resolve (merge rules)"}

	for _, code := range codes {
		records, err := parser.Parse(payload, domain.City{Code: code})
		if err != nil {
			continue
		}
		out := domain.Resolve(records)

		keys := make([]string, len(out))
		for i, r := range out {
			keys[i] = r.IdentityKey
		}
		if !slices.IsSorted(keys) {
			p.errorf("city %s: resolved output not sorted by key", code)
		}
		if len(slices.Compact(slices.Clone(keys))) != len(keys) {
			p.errorf("city %s: duplicate identity keys after resolve", code)
		}

		for _, r := range out {
			for _, member := range records {
				if member.IdentityKey != r.IdentityKey {
					continue
				}
				if member.StartDate.After(r.StartDate) {
					p.errorf("%s: merged start %s earlier than member start %s", r.IdentityKey, r.StartDate, member.StartDate)
				}
				for _, risk := range member.Risks {
					if !slices.Contains(r.Risks, risk) {
						p.errorf("%s: risk %q lost in merge", r.IdentityKey, risk)
					}
				}
			}
		}
	}
	return p
}

// ── Phase 3: Reconcile ──

func validateReconcile(resolved map[string][]domain.AlertRecord) *phase {
	p := &phase{name: "Phase 3: Reconcile (lifecycle)"}

	for code, records := range resolved {
		engine := reconcile.New(code)

		first := engine.Reconcile(records, validationTime)
		if len(first) != len(records) {
			p.errorf("city %s: first poll emitted %d events for %d alerts", code, len(first), len(records))
		}
		for _, e := range first {
			if e.Kind != domain.Entered {
				p.errorf("city %s: first poll emitted %s for %s", code, e.Kind, e.Key)
			}
		}

		if again := engine.Reconcile(records, validationTime.Add(time.Hour)); len(again) != 0 {
			p.errorf("city %s: identical snapshot emitted %d events", code, len(again))
		}

		gone := engine.Reconcile(nil, validationTime.Add(2*time.Hour))
		if len(gone) != len(records) {
			p.errorf("city %s: empty snapshot emitted %d exits for %d alerts", code, len(gone), len(records))
		}
		if engine.Len() != 0 {
			p.errorf("city %s: %d alerts still active after empty snapshot", code, engine.Len())
		}
	}
	return p
}

// ── Phase 4: Expected fixture ──

func validateExpected(path string, resolved map[string][]domain.AlertRecord) *phase {
	p := &phase{name: "Phase 4: Expected fixture (genmock)"}

	data, err := os.ReadFile(path)
	if err != nil {
		p.errorf("read expected fixture: %v", err)
		return p
	}
	var expected map[string][]domain.AlertRecord
	if err := json.Unmarshal(data, &expected); err != nil {
		p.errorf("decode expected fixture: %v", err)
		return p
	}

	for code, want := range expected {
		got := resolved[code]
		// The fixture carries city coordinates; the payload alone does not.
		for i := range want {
			want[i].Latitude, want[i].Longitude = 0, 0
		}
		if diff := cmp.Diff(want, got); diff != "" {
			p.errorf("city %s (-want +got):\n%s", code, diff)
		}
	}
	return p
}
