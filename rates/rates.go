// Package rates loads the currency conversion table used to normalize
// payment amounts into the reference currency before they reach the ledger.
package rates

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Table maps uppercase ISO currency codes to their conversion rate into the
// reference currency.
type Table struct {
	ReferenceCurrency string
	Rates             map[string]decimal.Decimal
}

type fileConfig struct {
	ReferenceCurrency string            `json:"referenceCurrency"`
	Rates             map[string]string `json:"rates"`
}

// LoadTable loads and validates a rate table JSON file. Lines starting with
// '#' are treated as comments.
func LoadTable(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer file.Close()

	var filtered bytes.Buffer
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		filtered.WriteString(line)
		filtered.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return Table{}, err
	}

	dec := json.NewDecoder(&filtered)
	dec.DisallowUnknownFields()
	var cfg fileConfig
	if err := dec.Decode(&cfg); err != nil {
		return Table{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Table{}, errors.New("config has trailing data")
	}

	return buildTable(cfg)
}

func buildTable(cfg fileConfig) (Table, error) {
	reference := strings.ToUpper(strings.TrimSpace(cfg.ReferenceCurrency))
	if reference == "" {
		return Table{}, errors.New("referenceCurrency must not be empty")
	}
	if len(cfg.Rates) == 0 {
		return Table{}, errors.New("rates must not be empty")
	}

	table := Table{
		ReferenceCurrency: reference,
		Rates:             make(map[string]decimal.Decimal, len(cfg.Rates)),
	}
	for code, raw := range cfg.Rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return Table{}, errors.New("rates contains an empty currency code")
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return Table{}, fmt.Errorf("rate for %q: %w", code, err)
		}
		if !rate.IsPositive() {
			return Table{}, fmt.Errorf("rate for %q must be positive, got %s", code, rate)
		}
		if _, dup := table.Rates[code]; dup {
			return Table{}, fmt.Errorf("duplicate currency %q", code)
		}
		table.Rates[code] = rate
	}

	referenceRate, ok := table.Rates[reference]
	if !ok {
		return Table{}, fmt.Errorf("referenceCurrency %q has no rate entry", reference)
	}
	if !referenceRate.Equal(decimal.NewFromInt(1)) {
		return Table{}, fmt.Errorf("referenceCurrency %q must have rate 1, got %s", reference, referenceRate)
	}
	return table, nil
}

// Lookup returns the conversion rate for a currency code. The code is
// trimmed and case-folded so "usd" and "USD" resolve identically.
func (t Table) Lookup(currency string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return decimal.Zero, errors.New("currency must not be empty")
	}
	rate, ok := t.Rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown currency %q", code)
	}
	return rate, nil
}
