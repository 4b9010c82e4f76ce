package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportService 看板导出服务
type ExportService struct {
	requestSvc *RequestService
}

// NewExportService 创建导出服务
func NewExportService(requestSvc *RequestService) *ExportService {
	return &ExportService{requestSvc: requestSvc}
}

var exportHeaders = []string{
	"Request #", "Status", "Priority", "Department", "Requester",
	"Age (days)", "Items", "Validation %", "Pending Validations",
	"Approved", "Rejected", "Pending Reviews", "Overdue Reviews",
}

// ExportBoard 把当前看板导出为Excel，每个队列一个工作表
func (s *ExportService) ExportBoard(ctx context.Context) (*excelize.File, string, error) {
	snapshot, err := s.requestSvc.BuildBoard(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("构建看板快照失败: %w", err)
	}

	f := excelize.NewFile()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#8EA9DB", Style: 2},
		},
	})
	overdueStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#9C0006"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFC7CE"}},
	})

	for i, column := range snapshot.Columns {
		sheet := column.Title
		if i == 0 {
			f.SetSheetName("Sheet1", sheet)
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, "", fmt.Errorf("创建工作表失败: %w", err)
			}
		}

		for j, header := range exportHeaders {
			col, _ := excelize.ColumnNumberToName(j + 1)
			cell := col + "1"
			f.SetCellValue(sheet, cell, header)
			f.SetCellStyle(sheet, cell, cell, headerStyle)
		}
		f.SetColWidth(sheet, "A", "A", 18)
		f.SetColWidth(sheet, "B", "E", 14)

		for row, card := range column.Requests {
			values := []interface{}{
				card.RequestNumber, card.Status, card.Priority, card.Department,
				card.RequesterName, card.AgeDays, card.ItemCount,
				card.ValidationProgress, card.PendingValidations,
				card.ApprovedItems, card.RejectedItems,
				card.PendingReviews, card.OverdueReviews,
			}
			for j, v := range values {
				col, _ := excelize.ColumnNumberToName(j + 1)
				f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row+2), v)
			}
			if card.Overdue {
				first, _ := excelize.ColumnNumberToName(1)
				last, _ := excelize.ColumnNumberToName(len(values))
				f.SetCellStyle(sheet,
					fmt.Sprintf("%s%d", first, row+2),
					fmt.Sprintf("%s%d", last, row+2),
					overdueStyle)
			}
		}
	}

	filename := fmt.Sprintf("material-request-board-%s.xlsx", time.Now().Format("20060102-150405"))
	return f, filename, nil
}
