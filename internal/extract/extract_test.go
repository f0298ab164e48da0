package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_FullReceipt(t *testing.T) {
	res := Extract("Amount: 1,234.50 Currency: USD Date: 2024-01-15 Reference: ABC-123")

	require.NotNil(t, res.Fields.Amount)
	assert.InDelta(t, 1234.5, *res.Fields.Amount, 1e-9)
	assert.Equal(t, 1.0, res.ConfidencePerField.Amount)

	require.NotNil(t, res.Fields.Currency)
	assert.Equal(t, "USD", *res.Fields.Currency)
	assert.Equal(t, 1.0, res.ConfidencePerField.Currency)

	require.NotNil(t, res.Fields.Date)
	assert.Equal(t, "2024-01-15T00:00:00.000Z", *res.Fields.Date)
	assert.Equal(t, 1.0, res.ConfidencePerField.Date)

	require.NotNil(t, res.Fields.ReferenceCode)
	assert.Equal(t, "ABC-123", *res.Fields.ReferenceCode)
	assert.Equal(t, 1.0, res.ConfidencePerField.ReferenceCode)

	assert.Nil(t, res.Fields.BankName)
	assert.Nil(t, res.Fields.TransactionID)
}

func TestExtract_NoLabels(t *testing.T) {
	res := Extract("hello world, nothing to see here")

	assert.Equal(t, Fields{}, res.Fields)
	assert.Equal(t, Confidence{}, res.ConfidencePerField)
	assert.Empty(t, res.Fields.Map())
}

func TestExtract_ArabicIndicDigits(t *testing.T) {
	res := Extract("Total: ٢٥٠.٧٥ MVR")

	require.NotNil(t, res.Fields.Amount)
	assert.InDelta(t, 250.75, *res.Fields.Amount, 1e-9)
	require.NotNil(t, res.Fields.Currency)
	assert.Equal(t, "MVR", *res.Fields.Currency)
	assert.Equal(t, 0.8, res.ConfidencePerField.Currency)
}

func TestExtract_Currency(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		conf float64
	}{
		{"labelled lowercase", "curr: eur", "EUR", 1},
		{"labelled with dash", "Currency-gbp", "GBP", 1},
		{"bare code", "Paid 100 usd to merchant", "USD", 0.8},
		{"none", "Paid 100 to merchant", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.text)
			assert.Equal(t, tt.conf, res.ConfidencePerField.Currency)
			if tt.want == "" {
				assert.Nil(t, res.Fields.Currency)
				return
			}
			require.NotNil(t, res.Fields.Currency)
			assert.Equal(t, tt.want, *res.Fields.Currency)
		})
	}
}

func TestExtract_Dates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		conf float64
	}{
		{"iso", "Date: 2024-01-15", "2024-01-15T00:00:00.000Z", 1},
		{"day first slash", "date 15/01/2024", "2024-01-15T00:00:00.000Z", 1},
		{"day first dots", "Date:03.02.2024", "2024-02-03T00:00:00.000Z", 1},
		{"month first fallback", "Date: 01/15/2024", "2024-01-15T00:00:00.000Z", 1},
		{"two digit year", "Date: 15-01-24", "2024-01-15T00:00:00.000Z", 1},
		{"long month", "Date: 5 March 2023", "2023-03-05T00:00:00.000Z", 1},
		{"short month", "DATE 5 mar 2023", "2023-03-05T00:00:00.000Z", 1},
		{"matched but invalid", "Date: 45/45/2024", "", 0.5},
		{"unknown month word", "Date: 5 Marchy 2023", "", 0.5},
		{"no date", "Amount: 5", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.text)
			assert.Equal(t, tt.conf, res.ConfidencePerField.Date)
			if tt.want == "" {
				assert.Nil(t, res.Fields.Date)
				return
			}
			require.NotNil(t, res.Fields.Date)
			assert.Equal(t, tt.want, *res.Fields.Date)
		})
	}
}

func TestExtract_Amount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{"thousands", "TOTAL 12,500", 12500, true},
		{"dash separator", "amount-42.10", 42.1, true},
		{"prefix only", "Amount: 1.2.3", 1.2, true},
		{"leading dot", "Amount: .5", 0.5, true},
		{"separators only", "Amount: ,.", 0, false},
		{"no number", "Amount: USD 10", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.text)
			if !tt.ok {
				assert.Nil(t, res.Fields.Amount)
				assert.Equal(t, 0.0, res.ConfidencePerField.Amount)
				return
			}
			require.NotNil(t, res.Fields.Amount)
			assert.InDelta(t, tt.want, *res.Fields.Amount, 1e-9)
			assert.Equal(t, 1.0, res.ConfidencePerField.Amount)
		})
	}
}

func TestExtract_BankAndTransaction(t *testing.T) {
	res := Extract("Transfer via Maldives Islamic bank\nTxn ID: TX-99812\nMemo: INV2024")

	require.NotNil(t, res.Fields.BankName)
	assert.Equal(t, "Transfer via Maldives Islamic bank", *res.Fields.BankName)
	assert.Equal(t, 0.9, res.ConfidencePerField.BankName)

	require.NotNil(t, res.Fields.TransactionID)
	assert.Equal(t, "TX-99812", *res.Fields.TransactionID)
	assert.Equal(t, 1.0, res.ConfidencePerField.TransactionID)

	require.NotNil(t, res.Fields.ReferenceCode)
	assert.Equal(t, "INV2024", *res.Fields.ReferenceCode)
}

func TestExtract_BML(t *testing.T) {
	res := Extract("BML receipt\ntransactionid 7781")
	require.NotNil(t, res.Fields.BankName)
	assert.Equal(t, "BML", *res.Fields.BankName)
	require.NotNil(t, res.Fields.TransactionID)
	assert.Equal(t, "7781", *res.Fields.TransactionID)
}

func TestFields_Map(t *testing.T) {
	res := Extract("Amount: 1,234.50 Currency: USD Reference: ABC-123")
	m := res.Fields.Map()
	assert.Equal(t, map[string]string{
		"amount":        "1234.5",
		"currency":      "USD",
		"referenceCode": "ABC-123",
	}, m)
}

func TestConfidence_Mean(t *testing.T) {
	c := Confidence{Amount: 1, Currency: 1, Date: 1, ReferenceCode: 1, BankName: 0, TransactionID: 0}
	assert.InDelta(t, 4.0/6.0, c.Mean(), 1e-9)
	assert.Equal(t, 0.0, Confidence{}.Mean())
}
