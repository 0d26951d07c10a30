package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/Trackfy/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Load собирает документ из таблиц. Порядок строк — порядок записи
// (seq растёт в порядке вставки, Save пишет документ сверху вниз).
// CurrentStatus не персистится: читатели пересчитывают его по createdAt.
func (s *Storage) Load(ctx context.Context) (*models.Data, error) {
	data := &models.Data{
		Codes:       []models.TrackingCode{},
		Generations: []models.Generation{},
	}

	rows, err := s.db.Query(ctx, `
SELECT id, code, city, created_at, generation_id
FROM tracking_codes
ORDER BY seq
`)
	if err != nil {
		return nil, errors.Wrap(err, "select codes")
	}
	defer rows.Close()

	byGeneration := map[string][]models.TrackingCode{}
	for rows.Next() {
		var c models.TrackingCode
		var createdAt time.Time
		if err := rows.Scan(&c.ID, &c.Code, &c.City, &createdAt, &c.GenerationID); err != nil {
			return nil, errors.Wrap(err, "scan code")
		}
		c.CreatedAt = createdAt
		data.Codes = append(data.Codes, c)
		if c.GenerationID != "" {
			byGeneration[c.GenerationID] = append(byGeneration[c.GenerationID], c)
		}
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows codes")
	}

	genRows, err := s.db.Query(ctx, `SELECT id, created_at FROM generations ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "select generations")
	}
	defer genRows.Close()

	for genRows.Next() {
		var g models.Generation
		if err := genRows.Scan(&g.ID, &g.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan generation")
		}
		g.Codes = byGeneration[g.ID]
		if g.Codes == nil {
			g.Codes = []models.TrackingCode{}
		}
		g.TotalCodes = len(g.Codes)
		data.Generations = append(data.Generations, g)
	}
	if genRows.Err() != nil {
		return nil, errors.Wrap(genRows.Err(), "rows generations")
	}

	return data, nil
}

// Save транзакционно перезаписывает обе таблицы содержимым документа.
func (s *Storage) Save(ctx context.Context, data *models.Data) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tracking_codes`); err != nil {
		return errors.Wrap(err, "clear codes")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM generations`); err != nil {
		return errors.Wrap(err, "clear generations")
	}

	for _, c := range data.Codes {
		_, err := tx.Exec(ctx, `
INSERT INTO tracking_codes (id, code, city, created_at, generation_id)
VALUES ($1,$2,$3,$4,$5)
`, c.ID, c.Code, c.City, c.CreatedAt, c.GenerationID)
		if err != nil {
			return errors.Wrap(err, "insert code")
		}
	}

	for _, g := range data.Generations {
		_, err := tx.Exec(ctx, `INSERT INTO generations (id, created_at) VALUES ($1,$2)`, g.ID, g.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert generation")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
