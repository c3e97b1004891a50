package balance

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

var (
	pA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	pB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	pC = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

func makeTransaction(currency string, total int64, paid map[uuid.UUID]int64, owed map[uuid.UUID]int64) TransactionData {
	tx := &models.Transaction{AmountMinor: total, Currency: currency, Method: models.SplitEqual}
	tx.ID = uuid.New()

	data := TransactionData{Transaction: tx}
	for person, amount := range owed {
		s := &models.Split{TransactionID: tx.ID, PersonID: person, OwedMinor: amount}
		s.ID = uuid.New()
		data.Splits = append(data.Splits, s)
	}
	for person, amount := range paid {
		p := &models.Payer{TransactionID: tx.ID, PersonID: person, PaidMinor: amount}
		p.ID = uuid.New()
		data.Payers = append(data.Payers, p)
	}
	return data
}

func makeSettlement(from, to uuid.UUID, currency string, amount int64) *models.Settlement {
	s := &models.Settlement{FromPersonID: from, ToPersonID: to, AmountMinor: amount, Currency: currency}
	s.ID = uuid.New()
	return s
}

func TestNetPositions(t *testing.T) {
	data := makeTransaction("USD", 100,
		map[uuid.UUID]int64{pA: 100},
		map[uuid.UUID]int64{pA: 50, pB: 50},
	)
	net := NetPositions(data)
	if net[pA] != 50 {
		t.Errorf("net[A] = %d, want 50", net[pA])
	}
	if net[pB] != -50 {
		t.Errorf("net[B] = %d, want -50", net[pB])
	}
}

func TestPairwise(t *testing.T) {
	tests := []struct {
		name         string
		transactions []TransactionData
		settlements  []*models.Settlement
		validateFunc func(t *testing.T, buckets map[string]float64)
	}{
		{
			name: "a pays equal split, b owes half",
			transactions: []TransactionData{
				makeTransaction("USD", 100,
					map[uuid.UUID]int64{pA: 100},
					map[uuid.UUID]int64{pA: 50, pB: 50}),
			},
			validateFunc: func(t *testing.T, buckets map[string]float64) {
				if got := buckets["USD"]; got != 50 {
					t.Errorf("USD bucket = %v, want 50", got)
				}
			},
		},
		{
			name: "settlement cancels the debt",
			transactions: []TransactionData{
				makeTransaction("USD", 100,
					map[uuid.UUID]int64{pA: 100},
					map[uuid.UUID]int64{pA: 50, pB: 50}),
			},
			settlements: []*models.Settlement{
				makeSettlement(pB, pA, "USD", 50),
			},
			validateFunc: func(t *testing.T, buckets map[string]float64) {
				if len(buckets) != 0 {
					t.Errorf("buckets = %v, want settled", buckets)
				}
			},
		},
		{
			name: "tombstoned settlement is ignored",
			transactions: []TransactionData{
				makeTransaction("USD", 100,
					map[uuid.UUID]int64{pA: 100},
					map[uuid.UUID]int64{pA: 50, pB: 50}),
			},
			settlements: func() []*models.Settlement {
				s := makeSettlement(pB, pA, "USD", 50)
				s.MarkDeleted()
				return []*models.Settlement{s}
			}(),
			validateFunc: func(t *testing.T, buckets map[string]float64) {
				if got := buckets["USD"]; got != 50 {
					t.Errorf("USD bucket = %v, want 50", got)
				}
			},
		},
		{
			name: "debtor shortfall splits proportionally across creditors",
			transactions: []TransactionData{
				// A paid 60, C paid 30, B paid 0; each owes 30. Net positions
				// are A +30, C 0, B -30, so A holds all the credit and absorbs
				// B's whole shortfall.
				makeTransaction("USD", 90,
					map[uuid.UUID]int64{pA: 60, pC: 30},
					map[uuid.UUID]int64{pA: 30, pB: 30, pC: 30}),
			},
			validateFunc: func(t *testing.T, buckets map[string]float64) {
				if got := buckets["USD"]; got != 30 {
					t.Errorf("USD bucket = %v, want 30", got)
				}
			},
		},
		{
			name: "two creditors share the debt",
			transactions: []TransactionData{
				// A and C each paid 60; all three owe 40. B's 40 shortfall is
				// split between A (+20) and C (+20) in proportion to credit.
				makeTransaction("USD", 120,
					map[uuid.UUID]int64{pA: 60, pC: 60},
					map[uuid.UUID]int64{pA: 40, pB: 40, pC: 40}),
			},
			validateFunc: func(t *testing.T, buckets map[string]float64) {
				if got := buckets["USD"]; got != 20 {
					t.Errorf("USD bucket = %v, want 20", got)
				}
			},
		},
		{
			name: "transaction without both people contributes nothing",
			transactions: []TransactionData{
				makeTransaction("USD", 100,
					map[uuid.UUID]int64{pA: 100},
					map[uuid.UUID]int64{pA: 100}),
			},
			validateFunc: func(t *testing.T, buckets map[string]float64) {
				if len(buckets) != 0 {
					t.Errorf("buckets = %v, want empty", buckets)
				}
			},
		},
		{
			name: "currencies stay in separate buckets",
			transactions: []TransactionData{
				makeTransaction("USD", 100,
					map[uuid.UUID]int64{pA: 100},
					map[uuid.UUID]int64{pA: 50, pB: 50}),
				makeTransaction("EUR", 200,
					map[uuid.UUID]int64{pB: 200},
					map[uuid.UUID]int64{pA: 100, pB: 100}),
			},
			validateFunc: func(t *testing.T, buckets map[string]float64) {
				if got := buckets["USD"]; got != 50 {
					t.Errorf("USD bucket = %v, want 50", got)
				}
				if got := buckets["EUR"]; got != -100 {
					t.Errorf("EUR bucket = %v, want -100", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := Pairwise(pA, pB, tt.transactions, tt.settlements)
			tt.validateFunc(t, buckets)

			// Antisymmetry must hold for every case.
			mirror := Pairwise(pB, pA, tt.transactions, tt.settlements)
			if len(mirror) != len(buckets) {
				t.Fatalf("mirror has %d buckets, want %d", len(mirror), len(buckets))
			}
			for currency, amount := range buckets {
				if got := mirror[currency]; math.Abs(got+amount) > 1e-9 {
					t.Errorf("mirror[%s] = %v, want %v", currency, got, -amount)
				}
			}
		})
	}
}

func TestBuildReport(t *testing.T) {
	tests := []struct {
		name         string
		buckets      map[string]float64
		validateFunc func(t *testing.T, report Report)
	}{
		{
			name:    "empty buckets settle",
			buckets: map[string]float64{},
			validateFunc: func(t *testing.T, report Report) {
				if !report.IsSettled {
					t.Error("IsSettled = false, want true")
				}
				if report.PrimaryCurrency != "" {
					t.Errorf("PrimaryCurrency = %q, want empty", report.PrimaryCurrency)
				}
			},
		},
		{
			name:    "largest magnitude wins primary",
			buckets: map[string]float64{"USD": 5000, "EUR": -10000},
			validateFunc: func(t *testing.T, report Report) {
				if report.IsSettled {
					t.Error("IsSettled = true, want false")
				}
				if report.PrimaryCurrency != "EUR" {
					t.Errorf("PrimaryCurrency = %q, want EUR", report.PrimaryCurrency)
				}
				if report.PrimaryAmount != -100 {
					t.Errorf("PrimaryAmount = %v, want -100", report.PrimaryAmount)
				}
				if report.Balances["USD"] != 50 {
					t.Errorf("Balances[USD] = %v, want 50", report.Balances["USD"])
				}
			},
		},
		{
			name:    "magnitude tie breaks by currency code",
			buckets: map[string]float64{"USD": 5000, "EUR": -5000},
			validateFunc: func(t *testing.T, report Report) {
				if report.PrimaryCurrency != "EUR" {
					t.Errorf("PrimaryCurrency = %q, want EUR", report.PrimaryCurrency)
				}
			},
		},
		{
			name:    "zero-decimal currency scales by one",
			buckets: map[string]float64{"JPY": 1234},
			validateFunc: func(t *testing.T, report Report) {
				if report.Balances["JPY"] != 1234 {
					t.Errorf("Balances[JPY] = %v, want 1234", report.Balances["JPY"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validateFunc(t, BuildReport(tt.buckets))
		})
	}
}
