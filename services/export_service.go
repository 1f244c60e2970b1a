package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var orderExportHeaders = []string{
	"Order", "Request", "Status", "Supplier", "Category", "Item", "Quantity",
	"Unit", "Unit Price", "Line Total", "Delivered", "Order Total", "Created",
}

// ExportService renders order data as spreadsheets.
type ExportService struct {
	orders *OrderService
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{orders: NewOrderService(db)}
}

// ExportOrders writes one row per order item for the orders matching q,
// followed by a total row. The second return value is a download name.
func (s *ExportService) ExportOrders(ctx context.Context, q OrderQuery) (*excelize.File, string, error) {
	orders, err := s.orders.List(ctx, q)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "Orders"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range orderExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	row := 2
	for _, order := range orders {
		for _, item := range order.Items {
			values := []interface{}{
				order.OrderNumber,
				order.RequestNumber,
				string(order.Status),
				order.SupplierName,
				order.CategoryName,
				item.Name,
				item.Quantity,
				item.Unit,
				item.UnitPrice.InexactFloat64(),
				item.TotalPrice.InexactFloat64(),
				item.DeliveredQuantity,
				order.TotalAmount.InexactFloat64(),
				order.CreatedAt.Format(time.DateOnly),
			}
			for i, v := range values {
				col, _ := excelize.ColumnNumberToName(i + 1)
				f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
			}
			row++
		}
	}

	var grand float64
	for _, order := range orders {
		if order.Status.CountsTowardSpend() {
			grand += order.TotalAmount.InexactFloat64()
		}
	}
	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("F%d", row), fmt.Sprintf("%d orders", len(orders)))
	f.SetCellValue(sheet, fmt.Sprintf("L%d", row), grand)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("M%d", row), totalStyle)

	widths := []float64{12, 10, 22, 20, 16, 24, 9, 8, 11, 11, 10, 12, 12}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	return f, fmt.Sprintf("purchase_orders_%s.xlsx", time.Now().Format("20060102")), nil
}
