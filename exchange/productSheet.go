package exchange

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bitbucket.org/shweretail/posledger_backend/models"
	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/xuri/excelize/v2"
)

const productSheetName = "Sheet1"

var productSheetHeaders = []string{"Name", "SKU", "Barcode", "Category", "CostPrice", "SellPrice", "Stock", "MinStock"}

// ExportProductSheet writes the branch catalog as an xlsx workbook.
func ExportProductSheet(ctx context.Context, branchId string, w io.Writer) error {
	products, err := models.ListProducts(ctx, branchId)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(productSheetName); err != nil {
		return err
	}

	for i, h := range productSheetHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(productSheetName, cell, h)
	}

	for i, p := range products {
		row := i + 2
		f.SetCellValue(productSheetName, "A"+fmt.Sprint(row), p.Name)
		f.SetCellValue(productSheetName, "B"+fmt.Sprint(row), p.Sku)
		f.SetCellValue(productSheetName, "C"+fmt.Sprint(row), p.Barcode)
		f.SetCellValue(productSheetName, "D"+fmt.Sprint(row), p.Category)
		f.SetCellValue(productSheetName, "E"+fmt.Sprint(row), p.CostPrice.String())
		f.SetCellValue(productSheetName, "F"+fmt.Sprint(row), p.SellPrice.String())
		f.SetCellValue(productSheetName, "G"+fmt.Sprint(row), p.Stock)
		f.SetCellValue(productSheetName, "H"+fmt.Sprint(row), p.MinStock)
	}

	return f.Write(w)
}

// RowError is one rejected sheet row. Row numbers are 1-based as shown in
// the spreadsheet application.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportReport summarizes an import: rows that failed validation are
// skipped and reported, the rest are applied.
type ImportReport struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Errors  []RowError `json:"errors"`
}

// ImportProductSheet upserts catalog rows from an xlsx workbook, matching
// existing products by SKU. Bad rows are reported per row instead of
// failing the whole file; each good row is applied through the normal
// product path so it lands in the sync queue like any edit.
func ImportProductSheet(ctx context.Context, session models.Session, r io.Reader) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(productSheetName)
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet is empty")
	}

	report := &ImportReport{Errors: []RowError{}}
	for idx, row := range rows[1:] {
		rowNo := idx + 2
		input, err := parseProductRow(row)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Row: rowNo, Message: err.Error()})
			continue
		}

		existing, err := models.GetProductBySku(ctx, session.BranchId, input.Sku)
		switch {
		case err == nil:
			if _, err := models.UpdateProduct(ctx, existing.ID, input); err != nil {
				report.Errors = append(report.Errors, RowError{Row: rowNo, Message: err.Error()})
				continue
			}
			report.Updated++
		case err == models.ErrNotFound:
			if _, err := models.CreateProduct(ctx, session, input); err != nil {
				report.Errors = append(report.Errors, RowError{Row: rowNo, Message: err.Error()})
				continue
			}
			report.Created++
		default:
			return nil, err
		}
	}
	return report, nil
}

func parseProductRow(row []string) (*models.NewProduct, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	name := cell(0)
	sku := cell(1)
	if name == "" || sku == "" {
		return nil, fmt.Errorf("name and sku are required")
	}

	input := &models.NewProduct{
		Name:     name,
		Sku:      sku,
		Barcode:  cell(2),
		Category: cell(3),
	}

	var err error
	if v := cell(4); v != "" {
		if input.CostPrice, err = utils.ParseDecimal(v); err != nil {
			return nil, fmt.Errorf("could not parse cost price: %v", err)
		}
	}
	if v := cell(5); v != "" {
		if input.SellPrice, err = utils.ParseDecimal(v); err != nil {
			return nil, fmt.Errorf("could not parse sell price: %v", err)
		}
	}
	if v := cell(6); v != "" {
		if input.Stock, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("could not parse stock: %v", err)
		}
	}
	if v := cell(7); v != "" {
		if input.MinStock, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("could not parse min stock: %v", err)
		}
	}
	return input, nil
}
