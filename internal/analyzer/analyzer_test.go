package analyzer

import (
	"context"
	"strings"
	"testing"
)

const cleanSource = `package strategies

type Momentum struct {
	fast int
	slow int
}

func (m *Momentum) MinLookback() int { return m.slow }
`

func TestScanPassesCleanSource(t *testing.T) {
	res, err := New().Scan(context.Background(), cleanSource)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected clean source to pass, violations: %v", res.Violations)
	}
	if res.TypeName != "Momentum" {
		t.Errorf("expected type name Momentum, got %q", res.TypeName)
	}
}

func TestScanFlagsForbiddenImports(t *testing.T) {
	source := `package strategies

import (
	"time"
	"net/http"
)

type Clocky struct{}

func (c *Clocky) Deadline() int64 { _ = http.DefaultClient; return time.Now().Unix() }
`
	res, err := New().Scan(context.Background(), source)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Passed {
		t.Fatal("expected forbidden imports to fail the scan")
	}
	joined := strings.Join(res.Violations, "\n")
	if !strings.Contains(joined, `forbidden import "time"`) {
		t.Errorf("missing time import violation: %v", res.Violations)
	}
	if !strings.Contains(joined, `forbidden import "net/http"`) {
		t.Errorf("missing net/http import violation: %v", res.Violations)
	}
	if !strings.Contains(joined, "forbidden call time.Now") {
		t.Errorf("missing time.Now call violation: %v", res.Violations)
	}
}

func TestScanFlagsAliasedForbiddenCall(t *testing.T) {
	// The import check misses the alias, the call check does not.
	source := `package strategies

import rand "math/rand/v2"

type Coin struct{}

func (c *Coin) Flip() int { return rand.Int() }
`
	res, err := New().Scan(context.Background(), source)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Passed {
		t.Fatal("expected aliased rand.Int call to fail the scan")
	}
	if !strings.Contains(strings.Join(res.Violations, "\n"), "forbidden call rand.Int") {
		t.Errorf("missing rand.Int violation: %v", res.Violations)
	}
}

func TestScanUnparsableSourceFailsWithoutError(t *testing.T) {
	res, err := New().Scan(context.Background(), "package {{{")
	if err != nil {
		t.Fatalf("parse failure must not surface as an error, got %v", err)
	}
	if res.Passed {
		t.Fatal("expected unparsable source to fail the scan")
	}
	if len(res.Violations) == 0 || !strings.Contains(res.Violations[0], "does not parse") {
		t.Errorf("expected parse violation, got %v", res.Violations)
	}
}

func TestScanRequiresExportedStructType(t *testing.T) {
	source := `package strategies

type helper struct{ n int }
`
	res, err := New().Scan(context.Background(), source)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Passed {
		t.Fatal("expected source without an exported struct to fail")
	}
	if res.TypeName != "" {
		t.Errorf("expected empty type name, got %q", res.TypeName)
	}
}
