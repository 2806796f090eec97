package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/vkoshel/tradegate/internal/journal"
	"github.com/vkoshel/tradegate/internal/risk"
)

// ExcelReporter writes trade history and risk state to an xlsx
// workbook.
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header   int
	currency int
}

// WriteReport writes the trades and risk snapshot to path.
func (r *ExcelReporter) WriteReport(trades []journal.TradeRecord, st risk.Status, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const riskSheet = "Risk"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	fx.NewSheet(riskSheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, tradesSheet, trades, styles); err != nil {
		return err
	}
	if err := r.writeRiskSheet(fx, riskSheet, st, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.currency, err = fx.NewStyle(&excelize.Style{
		NumFmt: 4,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	return styles, err
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, trades []journal.TradeRecord, styles excelStyles) error {
	headers := []string{"Opened", "Closed", "Symbol", "Side", "Size", "Entry Price", "Exit Price", "Commission", "PnL", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(sheet, "A1", "J1", styles.header); err != nil {
		return err
	}

	for row, tr := range trades {
		closedAt := ""
		if !tr.ClosedAt.IsZero() {
			closedAt = tr.ClosedAt.Format("2006-01-02 15:04")
		}
		values := []interface{}{
			tr.OpenedAt.Format("2006-01-02 15:04"),
			closedAt,
			tr.Symbol,
			tr.Side,
			tr.Size,
			tr.EntryPrice,
			tr.ExitPrice,
			tr.Commission,
			tr.PnL,
			tr.Status,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	fx.SetColWidth(sheet, "A", "B", 18)
	fx.SetColWidth(sheet, "C", "J", 14)
	return nil
}

func (r *ExcelReporter) writeRiskSheet(fx *excelize.File, sheet string, st risk.Status, styles excelStyles) error {
	rows := [][2]interface{}{
		{"Daily Loss", st.DailyLoss.StringFixed(2)},
		{"Weekly Loss", st.WeeklyLoss.StringFixed(2)},
		{"Monthly Loss", st.MonthlyLoss.StringFixed(2)},
		{"Realized Profit", st.Profit.StringFixed(2)},
		{"Open Positions", len(st.Positions)},
		{"Open Orders", st.OpenOrders},
		{"Open Exposure", st.OpenExposure.StringFixed(2)},
	}

	if err := fx.SetCellValue(sheet, "A1", "Metric"); err != nil {
		return err
	}
	if err := fx.SetCellValue(sheet, "B1", "Value"); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "B1", styles.header); err != nil {
		return err
	}

	for i, row := range rows {
		cellA, _ := excelize.CoordinatesToCellName(1, i+2)
		cellB, _ := excelize.CoordinatesToCellName(2, i+2)
		if err := fx.SetCellValue(sheet, cellA, row[0]); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cellB, row[1]); err != nil {
			return err
		}
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "B", 16)
	return nil
}
