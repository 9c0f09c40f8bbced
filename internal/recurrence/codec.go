package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/teambition/rrule-go"
)

const untilLayout = "20060102T150405Z"

// Rule is the structured form of a stored recurrence rule string
type Rule struct {
	Frequency domain.Frequency
	Interval  int
	Count     int
	Until     *time.Time
	// Parts holds the BY* and WKST parts verbatim, in input order
	Parts []string
}

var toRRuleFreq = map[domain.Frequency]rrule.Frequency{
	domain.FrequencyDaily:   rrule.DAILY,
	domain.FrequencyWeekly:  rrule.WEEKLY,
	domain.FrequencyMonthly: rrule.MONTHLY,
	domain.FrequencyYearly:  rrule.YEARLY,
}

var fromRRuleFreq = map[rrule.Frequency]domain.Frequency{
	rrule.DAILY:   domain.FrequencyDaily,
	rrule.WEEKLY:  domain.FrequencyWeekly,
	rrule.MONTHLY: domain.FrequencyMonthly,
	rrule.YEARLY:  domain.FrequencyYearly,
}

// Encode builds the canonical bounded rule for "repeat count times at frequency"
func Encode(frequency domain.Frequency, count int) (string, error) {
	if count <= 0 {
		return "", fmt.Errorf("%w: count must be positive, got %d", domain.ErrInvalidArgument, count)
	}
	if _, ok := toRRuleFreq[frequency]; !ok {
		return "", fmt.Errorf("%w: frequency %q", domain.ErrInvalidRule, frequency)
	}
	r := Rule{Frequency: frequency, Interval: 1, Count: count}
	return r.String(), nil
}

// Decode parses a stored rule string. BY* parts are kept verbatim so String
// renders an equivalent rule.
func Decode(ruleStr string) (*Rule, error) {
	opt, err := parseOption(ruleStr)
	if err != nil {
		return nil, err
	}
	freq, ok := fromRRuleFreq[opt.Freq]
	if !ok {
		return nil, fmt.Errorf("%w: frequency %s", domain.ErrInvalidRule, opt.Freq)
	}

	r := &Rule{
		Frequency: freq,
		Interval:  opt.Interval,
		Count:     opt.Count,
	}
	if r.Interval <= 0 {
		r.Interval = 1
	}
	if !opt.Until.IsZero() {
		until := opt.Until.UTC()
		r.Until = &until
	}
	for _, part := range splitParts(ruleStr) {
		if part.key == "WKST" || strings.HasPrefix(part.key, "BY") {
			r.Parts = append(r.Parts, part.key+"="+part.value)
		}
	}
	return r, nil
}

// String renders the rule in RFC 5545 form without the RRULE: prefix
func (r *Rule) String() string {
	parts := []string{"FREQ=" + strings.ToUpper(string(r.Frequency))}
	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if r.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.Count))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(untilLayout))
	}
	parts = append(parts, r.Parts...)
	return strings.Join(parts, ";")
}

type rulePart struct {
	key   string
	value string
}

func trimRule(ruleStr string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ruleStr), "RRULE:"))
}

func splitParts(ruleStr string) []rulePart {
	var parts []rulePart
	for _, raw := range strings.Split(trimRule(ruleStr), ";") {
		key, value, found := strings.Cut(raw, "=")
		if !found {
			continue
		}
		parts = append(parts, rulePart{
			key:   strings.ToUpper(strings.TrimSpace(key)),
			value: strings.ToUpper(strings.TrimSpace(value)),
		})
	}
	return parts
}

func parseOption(ruleStr string) (*rrule.ROption, error) {
	ruleStr = trimRule(ruleStr)
	// rrule-go defaults a missing FREQ to YEARLY
	if !strings.Contains(strings.ToUpper(ruleStr), "FREQ=") {
		return nil, fmt.Errorf("%w: %q has no FREQ", domain.ErrMalformedRule, ruleStr)
	}
	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRule, err)
	}
	// rrule-go reads COUNT=0 and INTERVAL=0 as unset
	for _, part := range splitParts(ruleStr) {
		if part.key != "COUNT" && part.key != "INTERVAL" {
			continue
		}
		if n, err := strconv.Atoi(part.value); err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive integer, got %q", domain.ErrMalformedRule, part.key, part.value)
		}
	}
	return opt, nil
}
