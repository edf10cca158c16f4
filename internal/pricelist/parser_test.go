package pricelist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/pkmprice/internal/model"
	"github.com/guarzo/pkmprice/internal/sets"
)

func TestParseReader(t *testing.T) {
	tests := map[string]struct {
		input string
		want  []model.PricingRequest
	}{
		"single line": {
			input: "'Pikachu ex' SVI 123\n",
			want: []model.PricingRequest{
				{Name: "Pikachu ex", SetCode: "SVI", Number: 123, SetID: "sv1", Line: 1},
			},
		},
		"no space before number is skipped": {
			input: "'Iono' PAL185\n'X' SVI123\n",
			want:  nil,
		},
		"code glued to digits is not a code": {
			input: "'Note' abc5 more text\n'Order' 12345\n'Pikachu ex' SVI 123\n",
			want: []model.PricingRequest{
				{Name: "Pikachu ex", SetCode: "SVI", Number: 123, SetID: "sv1", Line: 3},
			},
		},
		"skips comments blanks and junk": {
			input: "# my binder\n\n'Mew ex' MEW 151\nnot a card line\nPikachu SVI 1\n'Arven' OBF 186 extra text\n",
			want: []model.PricingRequest{
				{Name: "Mew ex", SetCode: "MEW", Number: 151, SetID: "sv3pt5", Line: 3},
				{Name: "Arven", SetCode: "OBF", Number: 186, SetID: "sv3", Line: 6},
			},
		},
		"keeps line order": {
			input: "'B' BRS 2\n'A' SVI 1\n",
			want: []model.PricingRequest{
				{Name: "B", SetCode: "BRS", Number: 2, SetID: "swsh9", Line: 1},
				{Name: "A", SetCode: "SVI", Number: 1, SetID: "sv1", Line: 2},
			},
		},
		"empty input": {
			input: "",
			want:  nil,
		},
	}

	p := NewParser(sets.Default())
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := p.ParseReader(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReaderUnknownSetCode(t *testing.T) {
	input := "'Pikachu ex' SVI 123\n# comment\n'Charizard' ZZZ 4\n'Arven' OBF 186\n"
	p := NewParser(sets.Default())

	got, err := p.ParseReader(strings.NewReader(input))
	require.Error(t, err)
	assert.Nil(t, got, "no requests should escape a failed parse")
	assert.ErrorIs(t, err, ErrSetCodeNotResolved)
	assert.Contains(t, err.Error(), "ZZZ")

	var codeErr *SetCodeError
	require.True(t, errors.As(err, &codeErr))
	assert.Equal(t, "ZZZ", codeErr.Code)
	assert.Equal(t, 3, codeErr.Line)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")
	require.NoError(t, os.WriteFile(path, []byte("'Pikachu ex' SVI 123\n'Giratina VSTAR' LOR 131\n"), 0644))

	got, err := NewParser(sets.Default()).Parse(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sv1-123", got[0].CardID())
	assert.Equal(t, "swsh11-131", got[1].CardID())
}

func TestParseMissingFile(t *testing.T) {
	_, err := NewParser(sets.Default()).Parse(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrInputNotFound)
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, uint32(7), parseNumber("007"))
	assert.Equal(t, uint32(999), parseNumber("999"))
	assert.Equal(t, NumberNotFound, parseNumber("99999999999"))
	assert.Equal(t, NumberNotFound, parseNumber(""))
}

func TestParseUsesInjectedResolver(t *testing.T) {
	p := NewParser(sets.NewResolver(sets.Table{"XYZ": "custom1"}))

	got, err := p.ParseReader(strings.NewReader("'Custom' xyz 5"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "custom1", got[0].SetID)
	assert.Equal(t, "xyz", got[0].SetCode)

	_, err = p.ParseReader(strings.NewReader("'Pikachu ex' SVI 123"))
	assert.ErrorIs(t, err, ErrSetCodeNotResolved)
}
