package businessflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amirphl/ecoestudiante-calc/app/dto"
	"github.com/xuri/excelize/v2"
)

const historySheetName = "history"

// ExportHistory renders the full filtered history as an xlsx workbook.
// Page and pageSize on the request are ignored.
func (f *CalculationFlowImpl) ExportHistory(ctx context.Context, req *dto.CalcHistoryRequest) (string, []byte, error) {
	q, err := f.buildHistoryQuery(req)
	if err != nil {
		return "", nil, err
	}
	q.pageSize = f.maxPageSize()

	var all []dto.CalcHistoryItem
	for page := 0; ; page++ {
		q.page = page
		items, total, err := f.loadHistoryPage(ctx, q)
		if err != nil {
			return "", nil, err
		}
		all = append(all, items...)
		if len(items) == 0 || int64(len(all)) >= total {
			break
		}
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), historySheetName); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare Excel sheet", err)
	}

	header := []string{"id", "category", "subcategory", "result_kg_co2e", "factor_value", "factor_unit", "factor_subcategory", "input", "created_at"}
	_ = xl.SetSheetRow(historySheetName, "A1", &header)

	for ri, item := range all {
		factorValue, factorUnit, factorSub := "", "", ""
		if item.FactorInfo != nil {
			factorValue = strconv.FormatFloat(item.FactorInfo.Value, 'f', -1, 64)
			factorUnit = item.FactorInfo.Unit
			if item.FactorInfo.Subcategory != nil {
				factorSub = *item.FactorInfo.Subcategory
			}
		}
		record := []string{
			item.ID,
			item.Category,
			item.Subcategory,
			strconv.FormatFloat(item.ResultKgCO2e, 'f', -1, 64),
			factorValue,
			factorUnit,
			factorSub,
			formatInputEcho(item.InputEcho),
			item.CreatedAt,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(historySheetName, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return "calculation_history.xlsx", buf.Bytes(), nil
}

// formatInputEcho renders the input as sorted key=value pairs.
func formatInputEcho(input map[string]any) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, input[k]))
	}
	return strings.Join(parts, "; ")
}
