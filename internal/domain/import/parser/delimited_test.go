package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/parser"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		line string
		want rune
	}{
		{"semicolons", "data;nome;valor", ';'},
		{"commas", "date,name,amount", ','},
		{"semicolon wins ties", "a;b,c;d,", ';'},
		{"decimal commas with semicolons", "01/12/2025;Renda;700,00", ';'},
		{"neither defaults to semicolon", "one column", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parser.DetectDelimiter(tt.line))
		})
	}
}

func TestSplitDelimited(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a;b;c", []string{"a", "b", "c"}},
		{"quoted delimiter", `a;"b;c";d`, []string{"a", "b;c", "d"}},
		{"quotes dropped", `"Renda";700`, []string{"Renda", "700"}},
		{"empty fields kept", "a;;c;", []string{"a", "", "c", ""}},
		{"unterminated quote swallows rest", `a;"b;c`, []string{"a", "b;c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parser.SplitDelimited(tt.line, ';'))
		})
	}
}

func TestReadDelimited(t *testing.T) {
	payload := []byte("data;nome;valor\n01/12/2025;Renda;700,00\n\n;Luz;45,00\n")

	sheet, err := parser.ReadDelimited(payload, "upload/dezembro.csv", parser.DefaultMapping())
	require.NoError(t, err)

	assert.Equal(t, "dezembro", sheet.Name)
	assert.Equal(t, 2, sheet.StartRow, "data starts below the header")
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, []string{"01/12/2025", "Renda", "700,00"}, sheet.Rows[0])
	assert.Nil(t, sheet.Rows[1], "blank line keeps its slot")
	assert.Equal(t, []string{"", "Luz", "45,00"}, sheet.Rows[2])
}

func TestReadDelimitedRowNumbersSurviveBlankLines(t *testing.T) {
	payload := []byte("nome;valor\nRenda;700,00\n\nLuz;45,00\n")
	m := parser.Mapping{DateCol: -1, NameCol: 0, AmountCol: 1, HeaderRow: 1}

	sheet, err := parser.ReadDelimited(payload, "x.csv", m)
	require.NoError(t, err)

	rows := sheet.RawRows(m)
	require.Len(t, rows, 3)
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, 4, rows[2].Number)
	assert.Equal(t, "Luz", rows[2].Name)
}

func TestReadDelimitedEmptyPayload(t *testing.T) {
	_, err := parser.ReadDelimited([]byte("  \n\n"), "x.csv", parser.DefaultMapping())
	assert.ErrorIs(t, err, parser.ErrEmptyFile)
}

func TestReadDelimitedLatin1(t *testing.T) {
	// "Cartão" encoded as Latin-1: 0xE3 is not valid UTF-8 on its own.
	payload := []byte("nome;valor\nCart\xe3o;10,00\n")
	m := parser.Mapping{DateCol: -1, NameCol: 0, AmountCol: 1, HeaderRow: 1}

	sheet, err := parser.ReadDelimited(payload, "x.csv", m)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "Cartão", sheet.Rows[0][0])
}

func TestReadDelimitedAllKeepsHeader(t *testing.T) {
	payload := []byte("data;nome;valor\n01/12/2025;Renda;700,00\n")

	sheet, err := parser.ReadDelimitedAll(payload, "x.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, sheet.StartRow)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, []string{"data", "nome", "valor"}, sheet.Rows[0])
}
