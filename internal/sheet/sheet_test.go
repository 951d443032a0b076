package sheet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var skipHints = DecodeOptions{SkipRow: schema.IsHintRow}

func TestTemplate_Layout(t *testing.T) {
	data, err := Template(schema.Crew)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"船员导入模板"}, f.GetSheetList())

	rows, err := f.GetRows("船员导入模板")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	def, _ := schema.Get(schema.Crew)
	assert.Equal(t, def.Columns(), rows[0])
	assert.Equal(t, "必填 (male/female)", rows[1][1])
	assert.Equal(t, "可选 (邮箱地址)", rows[1][5])
	assert.Equal(t, def.Example, rows[2])

	width, err := f.GetColWidth("船员导入模板", "A")
	require.NoError(t, err)
	assert.Equal(t, float64(TemplateColumnWidth), width)
}

func TestTemplate_UnknownEntity(t *testing.T) {
	_, err := Template("ship")
	assert.ErrorIs(t, err, schema.ErrUnknownEntity)
}

func TestTemplateFilename(t *testing.T) {
	assert.Equal(t, "船员导入模板.xlsx", TemplateFilename(schema.Crew))
	assert.Equal(t, "证书导入模板.xlsx", TemplateFilename(schema.Certificate))
}

func TestDecode_TemplateRoundTrip(t *testing.T) {
	for _, def := range schema.All() {
		t.Run(string(def.Type), func(t *testing.T) {
			data, err := Template(def.Type)
			require.NoError(t, err)

			got, err := Decode(data, skipHints)
			require.NoError(t, err)
			assert.Equal(t, "xlsx", got.Format)
			assert.Equal(t, def.Columns(), got.Header)
			require.Len(t, got.Rows, 1)

			row := got.Rows[0]
			assert.Equal(t, 1, row.Index)
			for i, col := range def.Columns() {
				v, ok := row.Value(col)
				assert.True(t, ok, "column %s should be non-null", col)
				assert.Equal(t, def.Example[i], v, "column %s", col)
			}
		})
	}
}

func TestDecode_WithoutSkipKeepsHintRow(t *testing.T) {
	data, err := Template(schema.Certificate)
	require.NoError(t, err)

	got, err := Decode(data, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "必填", got.Rows[0].Text("crew_id"))
	assert.Equal(t, 2, got.Rows[1].Index)
}

func TestDecode_CSV(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		wantRows int
		check    func(t *testing.T, s *Sheet)
	}{
		{
			name:     "plain utf8",
			input:    []byte("name,phone\n张三,13800138000\n李四,\n"),
			wantRows: 2,
			check: func(t *testing.T, s *Sheet) {
				assert.Equal(t, "张三", s.Rows[0].Text("name"))
				_, ok := s.Rows[1].Value("phone")
				assert.False(t, ok, "empty cell should decode to null")
			},
		},
		{
			name:     "bom stripped",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,phone\nA,1\n")...),
			wantRows: 1,
			check: func(t *testing.T, s *Sheet) {
				assert.Equal(t, []string{"name", "phone"}, s.Header)
			},
		},
		{
			name:     "blank lines skipped",
			input:    []byte("name\n\nA\n,\nB\n"),
			wantRows: 2,
			check: func(t *testing.T, s *Sheet) {
				assert.Equal(t, 1, s.Rows[0].Index)
				assert.Equal(t, 2, s.Rows[1].Index)
				assert.Equal(t, "B", s.Rows[1].Text("name"))
			},
		},
		{
			name:     "hint row skipped",
			input:    []byte("name,email\n必填,可选 (邮箱地址)\nA,a@b.cn\n"),
			wantRows: 1,
			check: func(t *testing.T, s *Sheet) {
				assert.Equal(t, 1, s.Rows[0].Index)
				assert.Equal(t, "a@b.cn", s.Rows[0].Text("email"))
			},
		},
		{
			name:     "short rows padded with null",
			input:    []byte("a,b,c\n1\n"),
			wantRows: 1,
			check: func(t *testing.T, s *Sheet) {
				_, ok := s.Rows[0].Value("c")
				assert.False(t, ok)
			},
		},
		{
			name:     "values not trimmed",
			input:    []byte("a\n\" x \"\n"),
			wantRows: 1,
			check: func(t *testing.T, s *Sheet) {
				v, _ := s.Rows[0].Value("a")
				assert.Equal(t, " x ", v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input, skipHints)
			require.NoError(t, err)
			assert.Equal(t, "csv", got.Format)
			require.Len(t, got.Rows, tt.wantRows)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestDecode_GB18030(t *testing.T) {
	encoded, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte("name,hometown\n张三,北京市\n"))
	require.NoError(t, err)

	got, err := Decode(encoded, skipHints)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "张三", got.Rows[0].Text("name"))
	assert.Equal(t, "北京市", got.Rows[0].Text("hometown"))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"nil buffer", nil, ErrEmptyFile},
		{"header only", []byte("name,phone\n"), ErrEmptyFile},
		{"header and hint only", []byte("name\n必填\n"), ErrEmptyFile},
		{"only blank lines", []byte("\n\n,,\n"), ErrEmptyFile},
		{"binary", []byte{0x00, 0x01, 0x02, 0x03, 0x04}, ErrParse},
		{"zip that is not a workbook", []byte("PK\x03\x04garbage"), ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input, skipHints)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_FirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	first := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(first, "A1", &[]any{"name"}))
	require.NoError(t, f.SetSheetRow(first, "A2", &[]any{"first"}))

	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]any{"name"}))
	require.NoError(t, f.SetSheetRow("Other", "A2", &[]any{"second"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got, err := Decode(buf.Bytes(), skipHints)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "first", got.Rows[0].Text("name"))
}

func TestDecode_WorkbookHeaderWithBOM(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"\ufeffname", " phone "}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"张三", "13800000001"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got, err := Decode(buf.Bytes(), skipHints)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "phone"}, got.Header)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "张三", got.Rows[0].Text("name"))
}

func TestCleanHeader(t *testing.T) {
	names, positions := cleanHeader([]string{"\ufeffname", "", "  ", " phone"})
	assert.Equal(t, []string{"name", "phone"}, names)
	assert.Equal(t, []int{0, 3}, positions)
}
