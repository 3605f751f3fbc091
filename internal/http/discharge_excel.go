package httpapi

import (
	"bytes"
	"fmt"

	"ward-discharge/internal/models"

	"github.com/xuri/excelize/v2"
)

const pendingExportSheet = "Pending Discharges"

// PendingDischargeExportHeader 导出表头
var PendingDischargeExportHeader = []string{
	"Hospital Number",
	"Name",
	"Surname",
	"Ward",
	"Bed",
	"Total Bill",
	"Amount Paid",
	"Balance",
	"Can Approve",
	"Requested By",
}

var pendingExportWidths = []float64{18, 16, 16, 14, 10, 12, 12, 12, 12, 22}

// GeneratePendingDischargeExport 生成待出院工作清单 Excel
func GeneratePendingDischargeExport(items []models.PendingDischargeDTO) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(pendingExportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	blockedStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#C00000"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create blocked style: %w", err)
	}

	for col, header := range PendingDischargeExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(pendingExportSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(pendingExportSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(pendingExportSheet, name, name, pendingExportWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, it := range items {
		row := i + 2
		canApprove := "Yes"
		if !it.CanApprove {
			canApprove = "No"
		}
		values := []any{
			it.HospitalNumber,
			it.Name,
			it.Surname,
			it.WardName,
			it.BedNumber,
			it.TotalBill,
			it.AmountPaid,
			it.Balance,
			canApprove,
			it.DischargeRequesterID,
		}
		start, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(pendingExportSheet, start, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if !it.CanApprove {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			if err := f.SetCellStyle(pendingExportSheet, start, end, blockedStyle); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to style row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(pendingExportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}
