// Package split implements the allocation algorithms that turn one
// transaction into per-person obligations: the split calculator (who owes
// what) and the payer allocator (who paid what).
//
// All arithmetic is done in integer minor units. User-entered raw inputs
// (percentages, exact amounts, adjustments, share counts) are parsed with
// shopspring/decimal so no float drift leaks into the ledger.
package split

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyapp/tally/internal/models"
)

// DefaultMaxAmountMinor is the hard ceiling on a transaction total:
// 10 million currency units at two minor digits. Totals above the ceiling
// are refused outright rather than risking overflow in the share math.
const DefaultMaxAmountMinor int64 = 10_000_000 * 100

var (
	// ErrAmountTooLarge is returned when a total exceeds the ceiling.
	ErrAmountTooLarge = errors.New("amount too large")

	// ErrNoParticipants is returned for a split with nobody in it.
	ErrNoParticipants = errors.New("must have at least one participant")

	// ErrUnknownMethod is returned for an unrecognized split method.
	ErrUnknownMethod = errors.New("unknown split method")

	// ErrNoShares is returned when a shares split has zero total shares.
	ErrNoShares = errors.New("total shares must be positive")

	// ErrAdjustmentsExceedTotal is returned when flat adjustments add up to
	// more than the transaction total.
	ErrAdjustmentsExceedTotal = errors.New("adjustments exceed the total")

	// ErrPercentageSum is returned by ValidatePercentages when the entered
	// percentages do not sum to 100 (within a 0.01 tolerance).
	ErrPercentageSum = errors.New("percentages must sum to 100")

	// ErrExactSum is returned by ValidateExactAmounts when the entered
	// amounts do not sum to the transaction total.
	ErrExactSum = errors.New("exact amounts must sum to the total")
)

// Participant identifies one person in a split. The display name takes part
// in the deterministic remainder ordering, so it travels with the ID.
type Participant struct {
	ID   uuid.UUID
	Name string
}

// Input is everything the calculator needs for one transaction.
type Input struct {
	// TotalMinor is the transaction total in integer minor units.
	TotalMinor int64

	Method models.SplitMethod

	Participants []Participant

	// Raw maps participant ID to the user-entered input for that person:
	// a percentage ("33.33"), an exact amount ("12.50"), a flat adjustment,
	// or a share count, depending on Method. Equal splits ignore it.
	Raw map[uuid.UUID]string

	// Exponent is the currency's minor-unit digit count (2 for USD, 0 for
	// JPY). Used to convert amount-shaped raw inputs into minor units.
	Exponent int32
}

// Calculator computes per-person owed amounts. The zero value is not usable;
// construct with NewCalculator.
type Calculator struct {
	// MaxAmountMinor is the refusal ceiling for transaction totals.
	MaxAmountMinor int64
}

// NewCalculator returns a Calculator with the default amount ceiling.
func NewCalculator() *Calculator {
	return &Calculator{MaxAmountMinor: DefaultMaxAmountMinor}
}

// Compute returns each participant's owed amount in minor units.
//
// For every method except percentage the returned amounts sum exactly to
// TotalMinor. Percentage splits round each share independently, so
// adversarial inputs (repeating decimals) can drift by one minor unit;
// callers are expected to have validated the percentages with
// ValidatePercentages first.
func (c *Calculator) Compute(in Input) (map[uuid.UUID]int64, error) {
	if len(in.Participants) == 0 {
		return nil, ErrNoParticipants
	}
	if in.TotalMinor < 0 || in.TotalMinor > c.MaxAmountMinor {
		return nil, fmt.Errorf("%w: %d minor units exceeds ceiling %d", ErrAmountTooLarge, in.TotalMinor, c.MaxAmountMinor)
	}

	ordered := orderParticipants(in.Participants)

	switch in.Method {
	case models.SplitEqual:
		return equalSplit(in.TotalMinor, ordered), nil
	case models.SplitPercentage:
		return percentageSplit(in.TotalMinor, ordered, in.Raw)
	case models.SplitExact:
		return exactSplit(ordered, in.Raw, in.Exponent)
	case models.SplitAdjustment:
		return adjustmentSplit(in.TotalMinor, ordered, in.Raw, in.Exponent)
	case models.SplitShares:
		return sharesSplit(in.TotalMinor, ordered, in.Raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, in.Method)
	}
}

// orderParticipants returns participants sorted lexicographically by display
// name, ties broken by ID. Remainder minor units are always handed out in
// this order, so the result is reproducible regardless of input order.
func orderParticipants(participants []Participant) []Participant {
	ordered := make([]Participant, len(participants))
	copy(ordered, participants)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})
	return ordered
}

// equalSplit divides total evenly; the first total%n participants in
// deterministic order each carry one extra minor unit.
func equalSplit(total int64, ordered []Participant) map[uuid.UUID]int64 {
	n := int64(len(ordered))
	base := total / n
	remainder := total % n

	owed := make(map[uuid.UUID]int64, len(ordered))
	for i, p := range ordered {
		share := base
		if int64(i) < remainder {
			share++
		}
		owed[p.ID] = share
	}
	return owed
}

// percentageSplit rounds each participant's share independently. The caller
// has already validated the percentages sum to 100; rounding drift beyond
// round() per participant is accepted.
func percentageSplit(total int64, ordered []Participant, raw map[uuid.UUID]string) (map[uuid.UUID]int64, error) {
	owed := make(map[uuid.UUID]int64, len(ordered))
	totalDec := decimal.NewFromInt(total)
	hundred := decimal.NewFromInt(100)

	for _, p := range ordered {
		pct, err := parseRaw(p, raw)
		if err != nil {
			return nil, err
		}
		owed[p.ID] = totalDec.Mul(pct).Div(hundred).Round(0).IntPart()
	}
	return owed, nil
}

// exactSplit takes each raw input as the owed amount directly. The caller
// has already validated the sum against the total.
func exactSplit(ordered []Participant, raw map[uuid.UUID]string, exponent int32) (map[uuid.UUID]int64, error) {
	owed := make(map[uuid.UUID]int64, len(ordered))
	for _, p := range ordered {
		amount, err := parseRaw(p, raw)
		if err != nil {
			return nil, err
		}
		owed[p.ID] = toMinor(amount, exponent)
	}
	return owed, nil
}

// adjustmentSplit gives each participant a flat adjustment (absent raw input
// means zero), then distributes the remaining amount with the equal
// algorithm and adds the adjustments back.
func adjustmentSplit(total int64, ordered []Participant, raw map[uuid.UUID]string, exponent int32) (map[uuid.UUID]int64, error) {
	adjustments := make(map[uuid.UUID]int64, len(ordered))
	var sum int64
	for _, p := range ordered {
		input, ok := raw[p.ID]
		if !ok || strings.TrimSpace(input) == "" {
			adjustments[p.ID] = 0
			continue
		}
		amount, err := parseRaw(p, raw)
		if err != nil {
			return nil, err
		}
		adjustments[p.ID] = toMinor(amount, exponent)
		sum += adjustments[p.ID]
	}

	remaining := total - sum
	if remaining < 0 {
		return nil, fmt.Errorf("%w: adjustments %d, total %d", ErrAdjustmentsExceedTotal, sum, total)
	}

	owed := equalSplit(remaining, ordered)
	for id, adj := range adjustments {
		owed[id] += adj
	}
	return owed, nil
}

// sharesSplit divides proportionally to integer share counts, then settles
// rounding leftovers one minor unit at a time in deterministic order so the
// sum is exact.
func sharesSplit(total int64, ordered []Participant, raw map[uuid.UUID]string) (map[uuid.UUID]int64, error) {
	shares := make(map[uuid.UUID]int64, len(ordered))
	var totalShares int64
	for _, p := range ordered {
		count, err := parseShares(p, raw)
		if err != nil {
			return nil, err
		}
		shares[p.ID] = count
		totalShares += count
	}
	if totalShares <= 0 {
		return nil, ErrNoShares
	}

	owed := make(map[uuid.UUID]int64, len(ordered))
	totalDec := decimal.NewFromInt(total)
	totalSharesDec := decimal.NewFromInt(totalShares)
	var sum int64
	for _, p := range ordered {
		share := totalDec.Mul(decimal.NewFromInt(shares[p.ID])).Div(totalSharesDec).Round(0).IntPart()
		owed[p.ID] = share
		sum += share
	}

	// Hand out (or claw back) the rounding leftover in deterministic order.
	// Only participants holding shares take part; a zero-share participant
	// always owes exactly zero.
	eligible := make([]Participant, 0, len(ordered))
	for _, p := range ordered {
		if shares[p.ID] > 0 {
			eligible = append(eligible, p)
		}
	}
	diff := total - sum
	for i := 0; diff != 0; i = (i + 1) % len(eligible) {
		id := eligible[i].ID
		if diff > 0 {
			owed[id]++
			diff--
		} else {
			owed[id]--
			diff++
		}
	}
	return owed, nil
}

// ValidatePercentages checks the save-time precondition for percentage
// splits: entered percentages must sum to 100 within a 0.01 tolerance.
func ValidatePercentages(participants []Participant, raw map[uuid.UUID]string) error {
	sum := decimal.Zero
	for _, p := range participants {
		pct, err := parseRaw(p, raw)
		if err != nil {
			return err
		}
		sum = sum.Add(pct)
	}
	tolerance := decimal.NewFromFloat(0.01)
	if sum.Sub(decimal.NewFromInt(100)).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%w: got %s", ErrPercentageSum, sum)
	}
	return nil
}

// ValidateExactAmounts checks the save-time precondition for exact splits:
// entered amounts must sum to the transaction total, to the minor unit.
func ValidateExactAmounts(totalMinor int64, participants []Participant, raw map[uuid.UUID]string, exponent int32) error {
	var sum int64
	for _, p := range participants {
		amount, err := parseRaw(p, raw)
		if err != nil {
			return err
		}
		sum += toMinor(amount, exponent)
	}
	if sum != totalMinor {
		return fmt.Errorf("%w: got %d, want %d", ErrExactSum, sum, totalMinor)
	}
	return nil
}

// parseRaw parses a participant's raw input as a decimal.
func parseRaw(p Participant, raw map[uuid.UUID]string) (decimal.Decimal, error) {
	input, ok := raw[p.ID]
	if !ok {
		return decimal.Zero, fmt.Errorf("missing input for participant %q", p.Name)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid input %q for participant %q: %w", input, p.Name, err)
	}
	return value, nil
}

// parseShares parses a participant's raw input as an integer share count.
func parseShares(p Participant, raw map[uuid.UUID]string) (int64, error) {
	input, ok := raw[p.ID]
	if !ok {
		return 0, fmt.Errorf("missing share count for participant %q", p.Name)
	}
	count, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid share count %q for participant %q: %w", input, p.Name, err)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative share count %d for participant %q", count, p.Name)
	}
	return count, nil
}

// toMinor converts a decimal major-unit amount to integer minor units using
// the currency's exponent.
func toMinor(amount decimal.Decimal, exponent int32) int64 {
	return amount.Shift(exponent).Round(0).IntPart()
}
