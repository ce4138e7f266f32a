package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/scansmart/constants"
)

const xlsxSheet = "Text"

// XLSXRenderer writes one text line per row, with its line number.
type XLSXRenderer struct {
	out output
}

func NewXLSXRenderer(dir string) *XLSXRenderer {
	return &XLSXRenderer{out: newOutput(dir)}
}

func (*XLSXRenderer) Format() constants.ExportFormat { return constants.ExportXLSX }

func (r *XLSXRenderer) RenderToFile(ctx context.Context, markup string) (Artifact, error) {
	lines, err := markupLines(markup)
	if err != nil {
		return Artifact{}, err
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	a, err := r.out.allocate(constants.ExportXLSX)
	if err != nil {
		return Artifact{}, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if index, _ := f.GetSheetIndex(xlsxSheet); index == -1 {
		if _, err := f.NewSheet(xlsxSheet); err != nil {
			return Artifact{}, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(xlsxSheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(xlsxSheet, cell, v)
	}
	write(1, 1, "Line")
	write(2, 1, "Text")
	for i, line := range lines {
		write(1, i+2, i+1)
		write(2, i+2, line)
	}

	_ = f.SetColWidth(xlsxSheet, "A", "A", 8)
	_ = f.SetColWidth(xlsxSheet, "B", "B", 100)

	if err := f.SaveAs(a.Path); err != nil {
		return Artifact{}, fmt.Errorf("xlsx write: %w", err)
	}
	return a.withSize()
}
