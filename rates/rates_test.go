package rates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func writeTempConfig(t *testing.T, config string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.json")
	if err := os.WriteFile(path, []byte(config), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTableValidConfig(t *testing.T) {
	config := `# conversion rates into the reference currency
{
  "referenceCurrency": "INR",
  "rates": {
    "INR": "1",
    "USD": "83.20",
    "EUR": "90.10"
  }
}
`
	table, err := LoadTable(writeTempConfig(t, config))
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	if table.ReferenceCurrency != "INR" {
		t.Fatalf("expected reference INR, got %q", table.ReferenceCurrency)
	}

	rate, err := table.Lookup(" usd ")
	if err != nil {
		t.Fatalf("lookup usd: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("83.20")) {
		t.Fatalf("expected 83.20, got %s", rate)
	}

	if _, err := table.Lookup("GBP"); err == nil {
		t.Fatal("expected unknown currency error")
	}
	if _, err := table.Lookup(""); err == nil {
		t.Fatal("expected empty currency error")
	}
}

func TestLoadTableRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "missing reference",
			config:  `{"rates": {"INR": "1"}}`,
			wantErr: "referenceCurrency",
		},
		{
			name:    "empty rates",
			config:  `{"referenceCurrency": "INR", "rates": {}}`,
			wantErr: "rates must not be empty",
		},
		{
			name:    "reference without entry",
			config:  `{"referenceCurrency": "INR", "rates": {"USD": "83"}}`,
			wantErr: "no rate entry",
		},
		{
			name:    "reference rate not one",
			config:  `{"referenceCurrency": "INR", "rates": {"INR": "2"}}`,
			wantErr: "must have rate 1",
		},
		{
			name:    "negative rate",
			config:  `{"referenceCurrency": "INR", "rates": {"INR": "1", "USD": "-83"}}`,
			wantErr: "must be positive",
		},
		{
			name:    "malformed rate",
			config:  `{"referenceCurrency": "INR", "rates": {"INR": "1", "USD": "not-a-number"}}`,
			wantErr: `rate for "USD"`,
		},
		{
			name:    "unknown field",
			config:  `{"referenceCurrency": "INR", "rates": {"INR": "1"}, "extra": true}`,
			wantErr: "unknown field",
		},
		{
			name:    "trailing data",
			config:  `{"referenceCurrency": "INR", "rates": {"INR": "1"}}{}`,
			wantErr: "trailing data",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadTable(writeTempConfig(t, tc.config))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
