// Package symboldir loads the static KOSPI/KOSDAQ universe document and
// answers code→name lookups for the Market Scanner's universe filter.
package symboldir

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Stock is one entry of the universe document.
type Stock struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// document is the on-disk shape: {total_stocks, market_filter, stocks:[...]}.
type document struct {
	TotalStocks  int     `json:"total_stocks"`
	MarketFilter string  `json:"market_filter"`
	Stocks       []Stock `json:"stocks"`
}

// preferredMarker is the Hangul syllable that marks a preferred-share
// listing ("우선주"); such names are excluded from the tradable universe.
const preferredMarker = "우"

// Directory is a loaded, filtered view of the static symbol universe.
// It is built once at startup and read concurrently; it holds no mutable
// state after Load returns, so no locking is needed.
type Directory struct {
	marketFilter string
	byCode       map[string]Stock
	codes        []string
}

// Load reads path, applies the universe filter (6-digit numeric code,
// name not containing the preferred-share marker), and returns a
// Directory over the surviving entries.
func Load(path string, log zerolog.Logger) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("symboldir: read %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("symboldir: parse %s: %w", path, err)
	}

	d := &Directory{
		marketFilter: doc.MarketFilter,
		byCode:       make(map[string]Stock, len(doc.Stocks)),
	}

	skipped := 0
	for _, s := range doc.Stocks {
		if !isTradable(s) {
			skipped++
			continue
		}
		d.byCode[s.Code] = s
		d.codes = append(d.codes, s.Code)
	}

	log.Info().
		Str("component", "symboldir").
		Int("declared_total", doc.TotalStocks).
		Int("loaded", len(d.codes)).
		Int("filtered_out", skipped).
		Str("market_filter", doc.MarketFilter).
		Msg("loaded symbol universe")

	return d, nil
}

// isTradable applies the universe filter: the code must be exactly 6
// numeric digits, and the name must not carry the preferred-share marker.
func isTradable(s Stock) bool {
	if len(s.Code) != 6 {
		return false
	}
	if _, err := strconv.Atoi(s.Code); err != nil {
		return false
	}
	if strings.Contains(s.Name, preferredMarker) {
		return false
	}
	return true
}

// Name returns the display name for code, and whether it is known.
func (d *Directory) Name(code string) (string, bool) {
	s, ok := d.byCode[code]
	return s.Name, ok
}

// Lookup returns the full Stock record for code, and whether it is known.
func (d *Directory) Lookup(code string) (Stock, bool) {
	s, ok := d.byCode[code]
	return s, ok
}

// Contains reports whether code survived the universe filter.
func (d *Directory) Contains(code string) bool {
	_, ok := d.byCode[code]
	return ok
}

// Codes returns every surviving code, in document order. The returned
// slice is owned by the caller; mutating it does not affect the
// Directory.
func (d *Directory) Codes() []string {
	out := make([]string, len(d.codes))
	copy(out, d.codes)
	return out
}

// Len returns the number of symbols in the filtered universe.
func (d *Directory) Len() int {
	return len(d.codes)
}

// MarketFilter returns the market_filter value declared by the source
// document (e.g. "KOSPI").
func (d *Directory) MarketFilter() string {
	return d.marketFilter
}
