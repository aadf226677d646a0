package businessflow

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/ecoestudiante-calc/app/dto"
	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/amirphl/ecoestudiante-calc/repository"
	"github.com/amirphl/ecoestudiante-calc/utils"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"
	"gopkg.in/yaml.v3"
)

// FactorFlow exposes read-only factor lookup and the catalog bootstrap.
type FactorFlow interface {
	ResolveFactor(ctx context.Context, req *dto.ResolveFactorRequest) (*dto.ResolveFactorResponse, error)
	SeedCatalog(ctx context.Context, r io.Reader) (*dto.SeedCatalogResponse, error)
}

// FactorFlowImpl implements FactorFlow
type FactorFlowImpl struct {
	catalogRepo repository.FactorCatalogRepository
	resolver    FactorResolver
	logger      zerolog.Logger
}

// NewFactorFlow creates a new factor flow
func NewFactorFlow(catalogRepo repository.FactorCatalogRepository, resolver FactorResolver, logger zerolog.Logger) FactorFlow {
	return &FactorFlowImpl{
		catalogRepo: catalogRepo,
		resolver:    resolver,
		logger:      logger.With().Str("component", "factor_flow").Logger(),
	}
}

// ResolveFactor reports the factor a calculation for the given tuple would use.
func (f *FactorFlowImpl) ResolveFactor(ctx context.Context, req *dto.ResolveFactorRequest) (*dto.ResolveFactorResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", ErrRequestRequired.Error(), ErrRequestRequired)
	}
	if req.Category != models.CategoryElectricity && req.Category != models.CategoryTransport {
		return nil, NewBusinessError("INVALID_CATEGORY", ErrInvalidCategory.Error(), ErrInvalidCategory)
	}
	refDate, err := utils.ParsePeriod(strings.TrimSpace(req.Period))
	if err != nil {
		return nil, NewBusinessError("INVALID_PERIOD", ErrInvalidPeriod.Error(), ErrInvalidPeriod)
	}

	var subcategory *string
	if req.Subcategory != nil && strings.TrimSpace(*req.Subcategory) != "" {
		s := strings.TrimSpace(*req.Subcategory)
		subcategory = &s
	}

	factor, err := f.resolver.Resolve(ctx, models.FactorQuery{
		Category:      req.Category,
		Subcategory:   subcategory,
		Country:       req.Country,
		ReferenceDate: refDate,
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.ResolveFactorResponse{
		Category:    factor.Category,
		Subcategory: factor.Subcategory,
		Country:     factor.Country,
		Value:       factor.Value,
		Unit:        factor.Unit(),
		Hash:        factor.Hash,
		SourceID:    factor.SourceID,
		ValidFrom:   factor.ValidFrom.UTC().Format(time.DateOnly),
	}
	if factor.ValidTo != nil {
		validTo := factor.ValidTo.UTC().Format(time.DateOnly)
		resp.ValidTo = &validTo
	}
	return resp, nil
}

// seedFile is the YAML layout of a catalog bootstrap file.
type seedFile struct {
	Versions []seedVersion `yaml:"versions"`
}

type seedVersion struct {
	SourceID  string       `yaml:"source_id"`
	ValidFrom string       `yaml:"valid_from"`
	ValidTo   string       `yaml:"valid_to"`
	Hash      string       `yaml:"hash"`
	Factors   []seedFactor `yaml:"factors"`
}

type seedFactor struct {
	Category    string  `yaml:"category"`
	Subcategory string  `yaml:"subcategory"`
	Country     string  `yaml:"country"`
	Value       float64 `yaml:"value"`
}

// SeedCatalog inserts every version from the file whose hash is not stored yet.
// Existing versions are never modified.
func (f *FactorFlowImpl) SeedCatalog(ctx context.Context, r io.Reader) (*dto.SeedCatalogResponse, error) {
	var file seedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, NewBusinessError("SEED_FILE_INVALID", "Failed to parse seed file", fmt.Errorf("%w: %w", ErrSeedFileInvalid, err))
	}

	versions := make([]*models.FactorVersion, 0, len(file.Versions))
	for i, sv := range file.Versions {
		v, err := sv.toModel()
		if err != nil {
			return nil, NewBusinessErrorf("SEED_FILE_INVALID", "version #%d is invalid", fmt.Errorf("%w: %w", ErrSeedFileInvalid, err), i+1)
		}
		versions = append(versions, v)
	}

	resp := &dto.SeedCatalogResponse{Inserted: []string{}, Skipped: []string{}}
	for _, v := range versions {
		existing, err := f.catalogRepo.ByHash(ctx, v.Hash)
		if err != nil {
			return nil, NewBusinessError("SEED_FAILED", "Failed to look up factor version", err)
		}
		if existing != nil {
			resp.Skipped = append(resp.Skipped, v.Hash)
			continue
		}
		if err := f.catalogRepo.SaveVersion(ctx, v); err != nil {
			if repository.IsUniqueViolation(err) {
				resp.Skipped = append(resp.Skipped, v.Hash)
				continue
			}
			return nil, NewBusinessError("SEED_FAILED", "Failed to insert factor version", err)
		}
		f.logger.Info().
			Str("hash", v.Hash).
			Str("source_id", v.SourceID).
			Int("factors", len(v.Factors)).
			Msg("inserted factor version")
		resp.Inserted = append(resp.Inserted, v.Hash)
	}
	return resp, nil
}

func (sv seedVersion) toModel() (*models.FactorVersion, error) {
	if strings.TrimSpace(sv.SourceID) == "" {
		return nil, fmt.Errorf("source_id is required")
	}
	validFrom, err := utils.ParseDate(strings.TrimSpace(sv.ValidFrom))
	if err != nil {
		return nil, fmt.Errorf("valid_from must be YYYY-MM-DD: %w", err)
	}
	var validTo *time.Time
	if s := strings.TrimSpace(sv.ValidTo); s != "" {
		t, err := utils.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("valid_to must be YYYY-MM-DD: %w", err)
		}
		if t.Before(validFrom) {
			return nil, fmt.Errorf("valid_to %s is before valid_from %s", s, sv.ValidFrom)
		}
		validTo = &t
	}
	if len(sv.Factors) == 0 {
		return nil, fmt.Errorf("at least one factor is required")
	}

	factors := make([]models.EmissionFactor, 0, len(sv.Factors))
	for _, sf := range sv.Factors {
		if sf.Category != models.CategoryElectricity && sf.Category != models.CategoryTransport {
			return nil, fmt.Errorf("unsupported category %q", sf.Category)
		}
		if sf.Value < 0 {
			return nil, fmt.Errorf("factor value must be >= 0")
		}
		ef := models.EmissionFactor{Category: sf.Category, Value: sf.Value}
		if s := strings.TrimSpace(sf.Subcategory); s != "" {
			ef.Subcategory = &s
		}
		if c := utils.NormalizeCountry(sf.Country); c != "" {
			ef.Country = &c
		}
		factors = append(factors, ef)
	}

	v := &models.FactorVersion{
		SourceID:  strings.TrimSpace(sv.SourceID),
		ValidFrom: validFrom,
		ValidTo:   validTo,
		Hash:      strings.TrimSpace(sv.Hash),
		CreatedAt: utils.UTCNow(),
		Factors:   factors,
	}
	if v.Hash == "" {
		v.Hash = VersionHash(v)
	}
	return v, nil
}

// VersionHash is the content hash of a version: SHA3-256 over its window and sorted factor rows.
func VersionHash(v *models.FactorVersion) string {
	lines := make([]string, 0, len(v.Factors))
	for _, ef := range v.Factors {
		lines = append(lines, strings.Join([]string{
			ef.Category,
			utils.StringPtrValue(ef.Subcategory),
			utils.StringPtrValue(ef.Country),
			strconv.FormatFloat(ef.Value, 'f', -1, 64),
		}, "|"))
	}
	sort.Strings(lines)

	validTo := ""
	if v.ValidTo != nil {
		validTo = v.ValidTo.UTC().Format(time.DateOnly)
	}

	h := sha3.New256()
	fmt.Fprintf(h, "%s\n%s\n%s\n", v.SourceID, v.ValidFrom.UTC().Format(time.DateOnly), validTo)
	for _, line := range lines {
		fmt.Fprintln(h, line)
	}
	return hex.EncodeToString(h.Sum(nil))
}
