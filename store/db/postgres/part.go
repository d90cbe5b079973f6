package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/partdesk/partdesk/store"
)

func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS parts (
			part_id                  SERIAL PRIMARY KEY,
			uid                      TEXT    NOT NULL UNIQUE,
			part_name                TEXT    NOT NULL,
			manufacturer_part_number TEXT    NOT NULL DEFAULT '',
			part_number              TEXT    NOT NULL DEFAULT '',
			brand                    TEXT    NOT NULL DEFAULT '',
			appliance_type           TEXT    NOT NULL DEFAULT '',
			current_price            NUMERIC NOT NULL DEFAULT 0,
			original_price           NUMERIC NOT NULL DEFAULT 0,
			rating                   NUMERIC,
			review_count             INTEGER NOT NULL DEFAULT 0,
			description              TEXT    NOT NULL DEFAULT '',
			symptoms                 TEXT    NOT NULL DEFAULT '',
			replacement_parts        TEXT    NOT NULL DEFAULT '',
			installation_difficulty  TEXT    NOT NULL DEFAULT '',
			installation_time        TEXT    NOT NULL DEFAULT '',
			delivery_time            TEXT    NOT NULL DEFAULT '',
			availability             TEXT    NOT NULL DEFAULT '',
			image_url                TEXT    NOT NULL DEFAULT '',
			video_url                TEXT    NOT NULL DEFAULT '',
			product_url              TEXT    NOT NULL DEFAULT '',
			compatible_models_count  INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS models (
			model_id     SERIAL PRIMARY KEY,
			model_number TEXT NOT NULL UNIQUE,
			model_url    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS part_model_mapping (
			part_id  INTEGER NOT NULL REFERENCES parts(part_id) ON DELETE CASCADE,
			model_id INTEGER NOT NULL REFERENCES models(model_id) ON DELETE CASCADE,
			PRIMARY KEY (part_id, model_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parts_part_number ON parts(part_number)`,
		`CREATE INDEX IF NOT EXISTS idx_parts_appliance_type ON parts(appliance_type)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

const partColumns = `uid, part_name, manufacturer_part_number, part_number, brand, appliance_type,
	current_price, original_price, rating, review_count, description, symptoms,
	installation_difficulty, installation_time, availability, image_url, video_url, product_url`

func (d *DB) SearchParts(ctx context.Context, find *store.FindPart) ([]*store.Part, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.PartNumber; v != nil {
		where = append(where,
			fmt.Sprintf("(part_number = %s OR manufacturer_part_number = %s)",
				placeholder(len(args)+1), placeholder(len(args)+2)))
		args = append(args, *v, *v)
	}
	if v := find.Search; v != nil {
		pattern := "%" + *v + "%"
		where = append(where,
			fmt.Sprintf("(part_name ILIKE %s OR part_number ILIKE %s OR symptoms ILIKE %s)",
				placeholder(len(args)+1), placeholder(len(args)+2), placeholder(len(args)+3)))
		args = append(args, pattern, pattern, pattern)
	}
	query := fmt.Sprintf("SELECT %s FROM parts WHERE %s ORDER BY part_id", partColumns, strings.Join(where, " AND "))
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parts := []*store.Part{}
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

func (d *DB) GetPart(ctx context.Context, find *store.FindPart) (*store.Part, error) {
	find.Limit = 1
	parts, err := d.SearchParts(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return parts[0], nil
}

func (d *DB) GetCompatibleModels(ctx context.Context, partUID string, limit int) ([]string, error) {
	query := `SELECT m.model_number
	          FROM models m
	          JOIN part_model_mapping pm ON pm.model_id = m.model_id
	          JOIN parts p ON p.part_id = pm.part_id
	          WHERE p.uid = $1
	          ORDER BY m.model_number`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := d.db.QueryContext(ctx, query, partUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	numbers := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPart(row rowScanner) (*store.Part, error) {
	part := &store.Part{}
	if err := row.Scan(
		&part.UID, &part.Name, &part.ManufacturerPartNumber, &part.PartNumber,
		&part.Brand, &part.ApplianceType, &part.CurrentPrice, &part.OriginalPrice,
		&part.Rating, &part.ReviewCount, &part.Description, &part.Symptoms,
		&part.InstallationDifficulty, &part.InstallationTime, &part.Availability,
		&part.ImageURL, &part.VideoURL, &part.ProductURL,
	); err != nil {
		return nil, err
	}
	part.HasDiscount = part.OriginalPrice > part.CurrentPrice
	return part, nil
}
