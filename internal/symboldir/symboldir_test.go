package symboldir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stock_list.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadFiltersPreferredAndNonNumericCodes(t *testing.T) {
	path := writeFixture(t, `{
		"total_stocks": 4,
		"market_filter": "KOSPI",
		"stocks": [
			{"code": "005930", "name": "삼성전자", "market": "KOSPI"},
			{"code": "005935", "name": "삼성전자우", "market": "KOSPI"},
			{"code": "ABCDEF", "name": "테스트", "market": "KOSPI"},
			{"code": "000660", "name": "SK하이닉스", "market": "KOSPI"}
		]
	}`)

	dir, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if dir.Len() != 2 {
		t.Fatalf("expected 2 tradable symbols, got %d", dir.Len())
	}
	if !dir.Contains("005930") || !dir.Contains("000660") {
		t.Errorf("expected regular codes to survive the filter")
	}
	if dir.Contains("005935") {
		t.Errorf("preferred-share code should have been filtered out")
	}
	if dir.Contains("ABCDEF") {
		t.Errorf("non-numeric code should have been filtered out")
	}

	name, ok := dir.Name("005930")
	if !ok || name != "삼성전자" {
		t.Errorf("Name(005930) = %q, %v", name, ok)
	}

	if dir.MarketFilter() != "KOSPI" {
		t.Errorf("expected market_filter KOSPI, got %q", dir.MarketFilter())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLookupUnknownCode(t *testing.T) {
	path := writeFixture(t, `{"total_stocks":0,"market_filter":"KOSPI","stocks":[]}`)
	dir, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := dir.Lookup("999999"); ok {
		t.Error("expected unknown code to return ok=false")
	}
}
