package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const report = `{
  "id": "REPORT-1",
  "account": {"iban": "LV00BANK0000000000", "currency": "EUR", "servicer": {"bic": "BANKLV22"}},
  "entries": [
    {
      "account_servicer_reference": "REF-1",
      "amount": {"value": "235.00", "currency": "EUR"},
      "credit_debit_indicator": "CRDT",
      "booking_date": {"date": "2026-03-02"},
      "bank_transaction_code": {"domain": "PMNT", "family": "CCRD", "sub_family": "FEES"}
    },
    {
      "account_servicer_reference": "REF-2",
      "amount": {"value": "12.50", "currency": "EUR"},
      "credit_debit_indicator": "DBIT",
      "booking_date": {"date_time": "2026-03-03T10:15:00+02:00"},
      "details": [{"related_parties": {"creditor_account": {"iban": "LV11SHOP0000000001", "name": "Shop"}}}]
    }
  ]
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportReport_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(report), 0o600))

	out, err := run(t, "import-report",
		"--file", path,
		"--time-zone", "Europe/Riga",
		"--user", uuid.NewString(),
		"--dry-run",
	)
	require.NoError(t, err)

	var result struct {
		Accounts  []json.RawMessage `json:"accounts"`
		Transfers []struct {
			Created bool `json:"created"`
		} `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Transfers, 2)
	assert.True(t, result.Transfers[0].Created)
	assert.True(t, result.Transfers[1].Created)
	// statement account, bank, shop
	assert.Len(t, result.Accounts, 3)
}

func TestImportReport_FlagErrors(t *testing.T) {
	user := uuid.NewString()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no source", args: []string{"import-report", "--time-zone", "UTC", "--user", user, "--dry-run"}},
		{name: "both sources", args: []string{"import-report", "--file", "a.json", "--gcs-uri", "gs://b/a.json", "--time-zone", "UTC", "--user", user, "--dry-run"}},
		{name: "bad user", args: []string{"import-report", "--file", "a.json", "--time-zone", "UTC", "--user", "nobody", "--dry-run"}},
		{name: "missing time zone", args: []string{"import-report", "--file", "a.json", "--user", user, "--dry-run"}},
		{name: "missing file", args: []string{"import-report", "--file", filepath.Join(t.TempDir(), "none.json"), "--time-zone", "UTC", "--user", user, "--dry-run"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestImportReport_UnknownTimeZone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(report), 0o600))

	_, err := run(t, "import-report", "--file", path, "--time-zone", "Mars/Olympus", "--user", uuid.NewString(), "--dry-run")

	assert.ErrorContains(t, err, "time_zone")
}
