package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_Commutative(t *testing.T) {
	red := OptionSelection{OptionType: "color", OptionValue: "red", OptionName: "Red"}
	large := OptionSelection{OptionType: "size", OptionValue: "L", OptionName: "Large", AdditionalPrice: 500}
	cotton := OptionSelection{OptionType: "fabric", OptionValue: "cotton"}

	permutations := [][]OptionSelection{
		{red, large, cotton},
		{red, cotton, large},
		{large, red, cotton},
		{large, cotton, red},
		{cotton, red, large},
		{cotton, large, red},
	}

	want := Resolve(permutations[0])
	for _, p := range permutations[1:] {
		assert.Equal(t, want, Resolve(p))
	}
	assert.Equal(t, "color:red|fabric:cotton|size:L", want)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		selections []OptionSelection
		expected   string
	}{
		{
			name:       "Nil selections",
			selections: nil,
			expected:   EmptyVariantKey,
		},
		{
			name:       "Empty selections",
			selections: []OptionSelection{},
			expected:   EmptyVariantKey,
		},
		{
			name:       "Single selection",
			selections: []OptionSelection{{OptionType: "color", OptionValue: "blue"}},
			expected:   "color:blue",
		},
		{
			name: "Duplicate selection counts once",
			selections: []OptionSelection{
				{OptionType: "color", OptionValue: "blue"},
				{OptionType: "color", OptionValue: "blue"},
			},
			expected: "color:blue",
		},
		{
			name: "Name and price do not affect identity",
			selections: []OptionSelection{
				{OptionType: "color", OptionValue: "blue", OptionName: "Ocean", AdditionalPrice: 1000},
			},
			expected: "color:blue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.selections))
		})
	}
}

func TestResolve_SeparatorsInOptionData(t *testing.T) {
	// "a|b:c" as one value must differ from two selections a and b:c.
	joined := Resolve([]OptionSelection{{OptionType: "x", OptionValue: "a|y:b"}})
	split := Resolve([]OptionSelection{
		{OptionType: "x", OptionValue: "a"},
		{OptionType: "y", OptionValue: "b"},
	})
	assert.NotEqual(t, joined, split)

	colon := Resolve([]OptionSelection{{OptionType: "a:b", OptionValue: "c"}})
	shifted := Resolve([]OptionSelection{{OptionType: "a", OptionValue: "b:c"}})
	assert.NotEqual(t, colon, shifted)

	assert.NotEqual(t, EmptyVariantKey, Resolve([]OptionSelection{{OptionType: "-", OptionValue: ""}}))
}

func TestLineItem_KeyCachesResolution(t *testing.T) {
	li := LineItem{SelectedOptions: []OptionSelection{
		{OptionType: "size", OptionValue: "M"},
		{OptionType: "color", OptionValue: "red"},
	}}

	assert.Empty(t, li.VariantKey)
	assert.Equal(t, "color:red|size:M", li.Key())
	assert.Equal(t, "color:red|size:M", li.VariantKey)
}
