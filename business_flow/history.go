package businessflow

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/amirphl/ecoestudiante-calc/app/dto"
	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/amirphl/ecoestudiante-calc/repository"
	"github.com/amirphl/ecoestudiante-calc/utils"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// historyQuery is a validated history request.
type historyQuery struct {
	filter   repository.QueryFilter
	page     int
	pageSize int
}

// GetHistory returns a page of the user's calculations, newest first.
// Factor info comes from each calculation's latest audit snapshot.
func (f *CalculationFlowImpl) GetHistory(ctx context.Context, req *dto.CalcHistoryRequest) (*dto.CalcHistoryResponse, error) {
	q, err := f.buildHistoryQuery(req)
	if err != nil {
		return nil, err
	}

	items, total, err := f.loadHistoryPage(ctx, q)
	if err != nil {
		return nil, err
	}

	return &dto.CalcHistoryResponse{
		Items:    items,
		Total:    total,
		Page:     q.page,
		PageSize: q.pageSize,
	}, nil
}

func (f *CalculationFlowImpl) buildHistoryQuery(req *dto.CalcHistoryRequest) (historyQuery, error) {
	if req == nil {
		return historyQuery{}, NewBusinessError("INVALID_REQUEST", ErrRequestRequired.Error(), ErrRequestRequired)
	}
	userID, ok := utils.NormalizeUserID(req.UserID)
	if !ok {
		return historyQuery{}, NewBusinessError("USER_ID_REQUIRED", ErrUserIDRequired.Error(), ErrUserIDRequired)
	}
	if req.Page < 0 {
		return historyQuery{}, NewBusinessError("INVALID_PAGE", ErrInvalidPage.Error(), ErrInvalidPage)
	}
	if req.PageSize < 0 {
		return historyQuery{}, NewBusinessError("INVALID_PAGE_SIZE", ErrInvalidPageSize.Error(), ErrInvalidPageSize)
	}

	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = f.defaultPageSize()
	}
	if limit := f.maxPageSize(); pageSize > limit {
		pageSize = limit
	}
	if req.Page > math.MaxInt/pageSize {
		return historyQuery{}, NewBusinessError("INVALID_PAGE", ErrInvalidPage.Error(), ErrInvalidPage)
	}

	filter := repository.NewQueryFilter(repository.Eq(repository.FieldUserID, userID))

	if category := strings.TrimSpace(req.Category); category != "" {
		if category != models.CategoryElectricity && category != models.CategoryTransport {
			return historyQuery{}, NewBusinessError("INVALID_CATEGORY", ErrInvalidCategory.Error(), ErrInvalidCategory)
		}
		filter = filter.And(repository.Eq(repository.FieldCategory, category))
	}

	var from, to *time.Time
	if s := strings.TrimSpace(req.CreatedFrom); s != "" {
		t, _, err := parseHistoryBound(s)
		if err != nil {
			return historyQuery{}, NewBusinessError("INVALID_DATE_RANGE", "from must be RFC3339 or YYYY-MM-DD", ErrInvalidDateRange)
		}
		from = &t
		filter = filter.And(repository.Gte(repository.FieldCreatedAt, t))
	}
	if s := strings.TrimSpace(req.CreatedTo); s != "" {
		t, dateOnly, err := parseHistoryBound(s)
		if err != nil {
			return historyQuery{}, NewBusinessError("INVALID_DATE_RANGE", "to must be RFC3339 or YYYY-MM-DD", ErrInvalidDateRange)
		}
		if dateOnly {
			// a bare date includes the whole day
			t = t.AddDate(0, 0, 1)
			filter = filter.And(repository.Lt(repository.FieldCreatedAt, t))
		} else {
			filter = filter.And(repository.Lte(repository.FieldCreatedAt, t))
		}
		to = &t
	}
	if from != nil && to != nil && from.After(*to) {
		return historyQuery{}, NewBusinessError("INVALID_DATE_RANGE", "from cannot be after to", ErrInvalidDateRange)
	}

	return historyQuery{filter: filter, page: req.Page, pageSize: pageSize}, nil
}

func parseHistoryBound(s string) (time.Time, bool, error) {
	if t, err := utils.ParseDate(s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

func (f *CalculationFlowImpl) loadHistoryPage(ctx context.Context, q historyQuery) ([]dto.CalcHistoryItem, int64, error) {
	var (
		total int64
		rows  []*models.Calculation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = f.calcRepo.CountMatching(gctx, q.filter)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = f.calcRepo.List(gctx, q.filter, q.pageSize, q.page*q.pageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, NewBusinessError("HISTORY_FETCH_FAILED", "Failed to fetch calculation history", err)
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	audits, err := f.auditRepo.LatestByCalculationIDs(ctx, ids)
	if err != nil {
		return nil, 0, NewBusinessError("HISTORY_FETCH_FAILED", "Failed to fetch calculation audits", err)
	}

	items := make([]dto.CalcHistoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toHistoryItem(row, audits[row.ID]))
	}
	return items, total, nil
}

func toHistoryItem(row *models.Calculation, audit *models.CalculationAudit) dto.CalcHistoryItem {
	input := map[string]any{}
	if len(row.InputJSON) > 0 {
		if err := json.Unmarshal(row.InputJSON, &input); err != nil {
			input = map[string]any{}
		}
	}

	item := dto.CalcHistoryItem{
		ID:           row.ID.String(),
		Category:     row.Category,
		Subcategory:  historyLabel(row.Category, input),
		InputEcho:    input,
		ResultKgCO2e: row.ResultKgCO2e,
		CreatedAt:    row.CreatedAt.UTC().Format(time.RFC3339),
	}

	if audit != nil {
		var snapshot models.FactorSnapshot
		if err := json.Unmarshal(audit.FactorSnapshot, &snapshot); err == nil {
			item.FactorInfo = &dto.FactorInfo{
				Value:       snapshot.Value,
				Unit:        snapshot.Unit,
				Subcategory: snapshot.Subcategory,
			}
		}
	}
	return item
}

// historyLabel reconstructs the human-readable subcategory from the stored input.
func historyLabel(category string, input map[string]any) string {
	switch category {
	case models.CategoryTransport:
		mode, _ := input["transportMode"].(string)
		fuel, _ := input["fuelType"].(string)
		return transportLabel(mode, fuel)
	case models.CategoryElectricity:
		raw, _ := input["selectedAppliances"].([]any)
		appliances := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				appliances = append(appliances, s)
			}
		}
		return electricityLabel(appliances)
	default:
		return category
	}
}

func (f *CalculationFlowImpl) defaultPageSize() int {
	if f.calcCfg.DefaultPageSize > 0 {
		return f.calcCfg.DefaultPageSize
	}
	return utils.DefaultPageSize
}

func (f *CalculationFlowImpl) maxPageSize() int {
	if f.calcCfg.MaxPageSize > 0 {
		return f.calcCfg.MaxPageSize
	}
	return utils.MaxPageSize
}
