package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wayfare/internal/models"
)

func (db *DB) UpsertPackage(ctx context.Context, pkg *models.Package) error {
	inclusions, err := json.Marshal(pkg.Inclusions)
	if err != nil {
		return fmt.Errorf("failed to encode inclusions: %w", err)
	}

	query := `INSERT INTO packages (id, name, destination, price_per_person, duration_days,
                                    inclusions, active, sort_order, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                destination = excluded.destination,
                price_per_person = excluded.price_per_person,
                duration_days = excluded.duration_days,
                inclusions = excluded.inclusions,
                active = excluded.active,
                sort_order = excluded.sort_order,
                updated_at = excluded.updated_at`
	now := time.Now()
	_, err = db.ExecContext(ctx, query,
		pkg.ID,
		pkg.Name,
		pkg.Destination,
		pkg.PricePerPerson,
		pkg.DurationDays,
		string(inclusions),
		pkg.Active,
		pkg.SortOrder,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert package: %w", err)
	}

	db.mu.Lock()
	cached := *pkg
	db.packagesCache[pkg.ID] = &cached
	db.mu.Unlock()

	return nil
}

func (db *DB) GetPackageByID(ctx context.Context, id string) (*models.Package, error) {
	id = strings.TrimSpace(id)

	db.mu.RLock()
	if pkg, ok := db.packagesCache[id]; ok {
		cached := *pkg
		db.mu.RUnlock()
		return &cached, nil
	}
	db.mu.RUnlock()

	query := `SELECT id, name, destination, price_per_person, duration_days,
                     inclusions, active, sort_order, created_at, updated_at
              FROM packages WHERE id = ?`
	pkg, err := db.scanPackageRow(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	db.packagesCache[pkg.ID] = pkg
	db.mu.Unlock()

	copied := *pkg
	return &copied, nil
}

func (db *DB) GetActivePackages(ctx context.Context) ([]*models.Package, error) {
	query := `SELECT id, name, destination, price_per_person, duration_days,
                     inclusions, active, sort_order, created_at, updated_at
              FROM packages WHERE active = 1 ORDER BY sort_order, id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active packages: %w", err)
	}
	defer rows.Close()

	var packages []*models.Package
	for rows.Next() {
		pkg, err := db.scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

func (db *DB) DeactivatePackage(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE packages SET active = 0, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate package: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	db.mu.Lock()
	if pkg, ok := db.packagesCache[id]; ok {
		pkg.Active = false
	}
	db.mu.Unlock()
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanPackageRow(row *sql.Row) (*models.Package, error) {
	pkg, err := db.scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return pkg, err
}

func (db *DB) scanPackage(s rowScanner) (*models.Package, error) {
	pkg := &models.Package{}
	var inclusions sql.NullString
	err := s.Scan(
		&pkg.ID, &pkg.Name, &pkg.Destination, &pkg.PricePerPerson, &pkg.DurationDays,
		&inclusions, &pkg.Active, &pkg.SortOrder, &pkg.CreatedAt, &pkg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan package: %w", err)
	}
	if inclusions.Valid && inclusions.String != "" {
		if err := json.Unmarshal([]byte(inclusions.String), &pkg.Inclusions); err != nil {
			return nil, fmt.Errorf("failed to decode inclusions for package %s: %w", pkg.ID, err)
		}
	}
	return pkg, nil
}
