package reports

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"
)

const (
	summarySheet  = "Summary"
	dentistsSheet = "Dentists"
	dateLayout    = "2006-01-02 15:04"
)

// WriteFinancialXLSX renders r as a workbook with a summary sheet and one
// row per dentist.
func WriteFinancialXLSX(w io.Writer, r *Financial) error {
	file := excelize.NewFile()
	file.NewSheet(summarySheet)
	file.NewSheet(dentistsSheet)
	file.DeleteSheet("Sheet1")

	summary := [][2]interface{}{
		{"From", r.From.Format(dateLayout)},
		{"To", r.To.Format(dateLayout)},
	}
	if r.RevenueSyp != nil {
		summary = append(summary,
			[2]interface{}{"Revenue (SYP)", *r.RevenueSyp},
			[2]interface{}{"Expenses (SYP)", *r.ExpensesSyp},
			[2]interface{}{"Net profit (SYP)", *r.NetProfitSyp},
		)
	}
	for i, kv := range summary {
		file.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		file.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}

	headers := map[string]string{
		"A1": "Dentist",
		"B1": "Revenue (SYP)",
		"C1": "Net profit (SYP)",
		"D1": "Share (%)",
		"E1": "Share amount (SYP)",
	}
	for cell, v := range headers {
		file.SetCellValue(dentistsSheet, cell, v)
	}
	for i, d := range r.Dentists {
		row := i + 2
		file.SetCellValue(dentistsSheet, fmt.Sprintf("A%d", row), d.DentistName)
		file.SetCellValue(dentistsSheet, fmt.Sprintf("B%d", row), d.RevenueSyp)
		file.SetCellValue(dentistsSheet, fmt.Sprintf("C%d", row), d.NetProfitSyp)
		file.SetCellValue(dentistsSheet, fmt.Sprintf("D%d", row), d.SharePercentage.String())
		file.SetCellValue(dentistsSheet, fmt.Sprintf("E%d", row), d.ShareAmountSyp)
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
