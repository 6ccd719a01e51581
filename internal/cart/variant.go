package cart

import (
	"sort"
	"strings"
)

// EmptyVariantKey identifies a line item with no option selections.
// Every resolved entry contains a ':' so this value cannot collide with one.
const EmptyVariantKey = "-"

const variantSeparator = "|"

// OptionSelection is one chosen value of one product option, e.g. color=red.
type OptionSelection struct {
	OptionType      string `json:"optionType" validate:"required"`
	OptionValue     string `json:"optionValue" validate:"required"`
	OptionName      string `json:"optionName"`
	AdditionalPrice int64  `json:"additionalPrice" validate:"gte=0"`
}

var variantEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`, `|`, `\|`)

// Resolve returns the canonical identity of a set of option selections.
// The result does not depend on the order of the input and duplicate
// selections count once.
func Resolve(selections []OptionSelection) string {
	if len(selections) == 0 {
		return EmptyVariantKey
	}

	distinct := distinctSelections(selections)
	parts := make([]string, 0, len(distinct))
	for _, s := range distinct {
		parts = append(parts, s.entry())
	}

	sort.Strings(parts)
	return strings.Join(parts, variantSeparator)
}

// entry is the escaped type:value form of a selection.
func (s OptionSelection) entry() string {
	return variantEscaper.Replace(s.OptionType) + ":" + variantEscaper.Replace(s.OptionValue)
}

// distinctSelections drops repeated type:value selections, keeping the first
// occurrence and the input order.
func distinctSelections(selections []OptionSelection) []OptionSelection {
	if len(selections) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(selections))
	out := make([]OptionSelection, 0, len(selections))
	for _, s := range selections {
		e := s.entry()
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, s)
	}
	return out
}
