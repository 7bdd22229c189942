package postgres

import (
	"context"
	"database/sql"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"quiz-session-service/internal/domain"
)

type catalogRow struct {
	bun.BaseModel `bun:"table:catalogs"`

	ID         string    `bun:"id,pk"`
	Title      string    `bun:"title"`
	SkillID    string    `bun:"skill_id"`
	Difficulty string    `bun:"difficulty"`
	Data       string    `bun:"data"`
	UpdatedAt  time.Time `bun:"updated_at"`
}

// CatalogStore writes catalogs through bun. It also serves reads, which lets
// the SQLite-backed tests and the seed command share one code path.
type CatalogStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewCatalogStore(db *bun.DB) *CatalogStore {
	return &CatalogStore{db: db, now: time.Now}
}

// SaveCatalog inserts the catalog or replaces the stored copy.
func (s *CatalogStore) SaveCatalog(ctx context.Context, catalog domain.Catalog) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return errors.Wrapf(err, "marshal catalog %s", catalog.ID)
	}
	row := &catalogRow{
		ID:         catalog.ID,
		Title:      catalog.Title,
		SkillID:    catalog.SkillID,
		Difficulty: catalog.Difficulty,
		Data:       string(data),
		UpdatedAt:  s.now().UTC(),
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("skill_id = EXCLUDED.skill_id").
		Set("difficulty = EXCLUDED.difficulty").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrapf(err, "save catalog %s", catalog.ID)
	}
	return nil
}

func (s *CatalogStore) LoadCatalog(ctx context.Context, catalogID string) (domain.Catalog, error) {
	row := new(catalogRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", catalogID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Catalog{}, domain.ErrCatalogNotFound
	}
	if err != nil {
		return domain.Catalog{}, errors.Wrapf(err, "load catalog %s", catalogID)
	}
	return decodeCatalog(catalogID, []byte(row.Data))
}

// ListCatalogs returns the answer-free summaries of all stored catalogs.
func (s *CatalogStore) ListCatalogs(ctx context.Context) ([]domain.CatalogSummary, error) {
	var rows []catalogRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "list catalogs")
	}
	out := make([]domain.CatalogSummary, 0, len(rows))
	for _, row := range rows {
		catalog, err := decodeCatalog(row.ID, []byte(row.Data))
		if err != nil {
			return nil, err
		}
		out = append(out, catalog.Summary())
	}
	return out, nil
}
