package sheet

import (
	"fmt"
	"math"
	"strconv"

	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the response content type for generated workbooks.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TemplateColumnWidth is the width applied to every template column.
const TemplateColumnWidth = 20

// TemplateFilename returns the localized download name for an entity's template.
func TemplateFilename(entity schema.EntityType) string {
	return entity.Label() + "导入模板.xlsx"
}

// Template builds the downloadable example workbook for an entity: row 1 holds
// the column names, row 2 the requirement hints and row 3 the worked example.
// Column order is the registry order, which is what Decode and the validators expect.
func Template(entity schema.EntityType) ([]byte, error) {
	def, err := schema.Get(entity)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := def.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(def.Fields))
	hints := make([]any, len(def.Fields))
	example := make([]any, len(def.Fields))
	for i, spec := range def.Fields {
		header[i] = spec.Name
		hints[i] = schema.Hint(spec)
		example[i] = exampleCell(spec, def.Example[i])
	}

	for i, row := range [][]any{header, hints, example} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write template row %d: %w", i+1, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(def.Fields))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", last, TemplateColumnWidth); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// exampleCell stores numeric examples as numbers and everything else as text,
// so identifiers and dates survive a round trip through a spreadsheet editor.
func exampleCell(spec schema.FieldSpec, value string) any {
	if spec.Kind != schema.KindNumber {
		return value
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	if f == math.Trunc(f) {
		return int64(f)
	}
	return f
}
