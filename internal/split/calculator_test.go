package split

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

var (
	alice   = Participant{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), Name: "Alice"}
	bob     = Participant{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), Name: "Bob"}
	charlie = Participant{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000c"), Name: "Charlie"}
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		in           Input
		wantErr      error
		validateFunc func(t *testing.T, owed map[uuid.UUID]int64)
	}{
		{
			name: "equal split with remainder",
			in: Input{
				TotalMinor:   100,
				Method:       models.SplitEqual,
				Participants: []Participant{charlie, bob, alice},
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				// 100 / 3: Alice gets the extra minor unit (first by name).
				if owed[alice.ID] != 34 {
					t.Errorf("Alice owes %d, want 34", owed[alice.ID])
				}
				if owed[bob.ID] != 33 {
					t.Errorf("Bob owes %d, want 33", owed[bob.ID])
				}
				if owed[charlie.ID] != 33 {
					t.Errorf("Charlie owes %d, want 33", owed[charlie.ID])
				}
			},
		},
		{
			name: "equal split is order independent",
			in: Input{
				TotalMinor:   101,
				Method:       models.SplitEqual,
				Participants: []Participant{bob, alice},
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				if owed[alice.ID] != 51 {
					t.Errorf("Alice owes %d, want 51", owed[alice.ID])
				}
				if owed[bob.ID] != 50 {
					t.Errorf("Bob owes %d, want 50", owed[bob.ID])
				}
			},
		},
		{
			name: "shares split sums exactly",
			in: Input{
				TotalMinor:   1000,
				Method:       models.SplitShares,
				Participants: []Participant{alice, bob, charlie},
				Raw: map[uuid.UUID]string{
					alice.ID:   "1",
					bob.ID:     "1",
					charlie.ID: "1",
				},
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				// 1000 across three equal shares: 334/333/333, never 999 or 1001.
				if owed[alice.ID] != 334 {
					t.Errorf("Alice owes %d, want 334", owed[alice.ID])
				}
				if owed[bob.ID] != 333 {
					t.Errorf("Bob owes %d, want 333", owed[bob.ID])
				}
				if owed[charlie.ID] != 333 {
					t.Errorf("Charlie owes %d, want 333", owed[charlie.ID])
				}
				var sum int64
				for _, v := range owed {
					sum += v
				}
				if sum != 1000 {
					t.Errorf("shares sum = %d, want 1000", sum)
				}
			},
		},
		{
			name: "shares split weighted",
			in: Input{
				TotalMinor:   900,
				Method:       models.SplitShares,
				Participants: []Participant{alice, bob},
				Raw: map[uuid.UUID]string{
					alice.ID: "2",
					bob.ID:   "1",
				},
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				if owed[alice.ID] != 600 {
					t.Errorf("Alice owes %d, want 600", owed[alice.ID])
				}
				if owed[bob.ID] != 300 {
					t.Errorf("Bob owes %d, want 300", owed[bob.ID])
				}
			},
		},
		{
			name: "zero-share participant never absorbs the leftover",
			in: Input{
				TotalMinor:   101,
				Method:       models.SplitShares,
				Participants: []Participant{alice, bob, charlie},
				Raw: map[uuid.UUID]string{
					alice.ID:   "0",
					bob.ID:     "1",
					charlie.ID: "1",
				},
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				// 101 across two shares rounds to 51+51; the clawback comes
				// out of a shareholder, never the zero-share participant.
				if owed[alice.ID] != 0 {
					t.Errorf("Alice owes %d, want 0", owed[alice.ID])
				}
				if owed[bob.ID] != 50 {
					t.Errorf("Bob owes %d, want 50", owed[bob.ID])
				}
				if owed[charlie.ID] != 51 {
					t.Errorf("Charlie owes %d, want 51", owed[charlie.ID])
				}
			},
		},
		{
			name: "zero total shares errors",
			in: Input{
				TotalMinor:   100,
				Method:       models.SplitShares,
				Participants: []Participant{alice, bob},
				Raw: map[uuid.UUID]string{
					alice.ID: "0",
					bob.ID:   "0",
				},
			},
			wantErr: ErrNoShares,
		},
		{
			name: "percentage split rounds per person",
			in: Input{
				TotalMinor:   1000,
				Method:       models.SplitPercentage,
				Participants: []Participant{alice, bob},
				Raw: map[uuid.UUID]string{
					alice.ID: "25",
					bob.ID:   "75",
				},
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				if owed[alice.ID] != 250 {
					t.Errorf("Alice owes %d, want 250", owed[alice.ID])
				}
				if owed[bob.ID] != 750 {
					t.Errorf("Bob owes %d, want 750", owed[bob.ID])
				}
			},
		},
		{
			name: "exact split uses entered amounts",
			in: Input{
				TotalMinor:   2500,
				Method:       models.SplitExact,
				Participants: []Participant{alice, bob},
				Raw: map[uuid.UUID]string{
					alice.ID: "12.50",
					bob.ID:   "12.50",
				},
				Exponent: 2,
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				if owed[alice.ID] != 1250 {
					t.Errorf("Alice owes %d, want 1250", owed[alice.ID])
				}
				if owed[bob.ID] != 1250 {
					t.Errorf("Bob owes %d, want 1250", owed[bob.ID])
				}
			},
		},
		{
			name: "adjustment split distributes the remainder equally",
			in: Input{
				TotalMinor:   1000,
				Method:       models.SplitAdjustment,
				Participants: []Participant{alice, bob},
				Raw: map[uuid.UUID]string{
					alice.ID: "2.00",
				},
				Exponent: 2,
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				// Alice pays her 200 adjustment plus half of the remaining 800.
				if owed[alice.ID] != 600 {
					t.Errorf("Alice owes %d, want 600", owed[alice.ID])
				}
				if owed[bob.ID] != 400 {
					t.Errorf("Bob owes %d, want 400", owed[bob.ID])
				}
			},
		},
		{
			name: "adjustments exceeding the total error",
			in: Input{
				TotalMinor:   100,
				Method:       models.SplitAdjustment,
				Participants: []Participant{alice, bob},
				Raw: map[uuid.UUID]string{
					alice.ID: "5.00",
				},
				Exponent: 2,
			},
			wantErr: ErrAdjustmentsExceedTotal,
		},
		{
			name: "no participants errors",
			in: Input{
				TotalMinor: 100,
				Method:     models.SplitEqual,
			},
			wantErr: ErrNoParticipants,
		},
		{
			name: "total above ceiling errors",
			in: Input{
				TotalMinor:   DefaultMaxAmountMinor + 1,
				Method:       models.SplitEqual,
				Participants: []Participant{alice},
			},
			wantErr: ErrAmountTooLarge,
		},
		{
			name: "total at ceiling is accepted",
			in: Input{
				TotalMinor:   DefaultMaxAmountMinor,
				Method:       models.SplitEqual,
				Participants: []Participant{alice},
			},
			validateFunc: func(t *testing.T, owed map[uuid.UUID]int64) {
				if owed[alice.ID] != DefaultMaxAmountMinor {
					t.Errorf("Alice owes %d, want %d", owed[alice.ID], DefaultMaxAmountMinor)
				}
			},
		},
		{
			name: "unknown method errors",
			in: Input{
				TotalMinor:   100,
				Method:       models.SplitMethod("proportional"),
				Participants: []Participant{alice},
			},
			wantErr: ErrUnknownMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owed, err := NewCalculator().Compute(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Compute() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compute() unexpected error: %v", err)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, owed)
			}
		})
	}
}

func TestValidatePercentages(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[uuid.UUID]string
		wantErr bool
	}{
		{
			name:    "exact hundred",
			raw:     map[uuid.UUID]string{alice.ID: "60", bob.ID: "40"},
			wantErr: false,
		},
		{
			name:    "within tolerance",
			raw:     map[uuid.UUID]string{alice.ID: "33.33", bob.ID: "33.33", charlie.ID: "33.33"},
			wantErr: false,
		},
		{
			name:    "short of hundred",
			raw:     map[uuid.UUID]string{alice.ID: "50", bob.ID: "40"},
			wantErr: true,
		},
		{
			name:    "over hundred",
			raw:     map[uuid.UUID]string{alice.ID: "60", bob.ID: "50"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			participants := make([]Participant, 0, len(tt.raw))
			for _, p := range []Participant{alice, bob, charlie} {
				if _, ok := tt.raw[p.ID]; ok {
					participants = append(participants, p)
				}
			}
			err := ValidatePercentages(participants, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePercentages() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateExactAmounts(t *testing.T) {
	raw := map[uuid.UUID]string{alice.ID: "12.50", bob.ID: "12.49"}
	err := ValidateExactAmounts(2500, []Participant{alice, bob}, raw, 2)
	if !errors.Is(err, ErrExactSum) {
		t.Errorf("ValidateExactAmounts() error = %v, want %v", err, ErrExactSum)
	}

	raw[bob.ID] = "12.50"
	if err := ValidateExactAmounts(2500, []Participant{alice, bob}, raw, 2); err != nil {
		t.Errorf("ValidateExactAmounts() unexpected error: %v", err)
	}
}
