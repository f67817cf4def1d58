package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"consumo-backend/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS material_configurations (
	id              BIGINT AUTO_INCREMENT PRIMARY KEY,
	name            VARCHAR(255) NOT NULL,
	product         VARCHAR(255) NULL,
	system_key      VARCHAR(255) NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	materials       JSON NOT NULL,
	selection_rules JSON NOT NULL,
	optimization    JSON NOT NULL,
	colors          JSON NOT NULL,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	UNIQUE KEY uq_material_configurations_name (name)
)`

const selectConfiguration = `
	SELECT id, name, product, system_key, is_active, materials, selection_rules, optimization, colors, updated_at
	FROM material_configurations`

type scanner interface {
	Scan(dest ...any) error
}

func scanConfiguration(row scanner) (*storage.Configuration, error) {
	cfg := &storage.Configuration{}

	// JSON колонки читаем строками
	var product sql.NullString
	var materialsJSON, rulesJSON, optimizationJSON, colorsJSON string
	err := row.Scan(
		&cfg.ID,
		&cfg.Name,
		&product,
		&cfg.System,
		&cfg.Active,
		&materialsJSON,
		&rulesJSON,
		&optimizationJSON,
		&colorsJSON,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.Product = product.String

	if err := json.Unmarshal([]byte(materialsJSON), &cfg.Materials); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON материалов: %w", err)
	}
	if err := json.Unmarshal([]byte(rulesJSON), &cfg.SelectionRules); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON правил выбора: %w", err)
	}
	if err := json.Unmarshal([]byte(optimizationJSON), &cfg.Optimization); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON оптимизации: %w", err)
	}
	if err := json.Unmarshal([]byte(colorsJSON), &cfg.Colors); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON цветов: %w", err)
	}

	return cfg, nil
}

func (s *Storage) GetConfigurations(ctx context.Context) ([]*storage.Configuration, error) {
	const op = "storage.mysql.GetConfigurations"

	rows, err := s.db.QueryContext(ctx, selectConfiguration+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var configs []*storage.Configuration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: ошибка сканирования строки: %w", op, err)
		}
		configs = append(configs, cfg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка при итерации по строкам: %w", op, err)
	}

	return configs, nil
}

func (s *Storage) GetConfigurationByID(ctx context.Context, id int64) (*storage.Configuration, error) {
	const op = "storage.mysql.GetConfigurationByID"

	cfg, err := scanConfiguration(s.db.QueryRowContext(ctx, selectConfiguration+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: конфигурация id=%d: %w", op, id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: выполнение запроса завершилось ошибкой: %w", op, err)
	}

	return cfg, nil
}

type configurationColumns struct {
	materials, rules, optimization, colors []byte
}

func marshalColumns(cfg *storage.Configuration) (configurationColumns, error) {
	var cols configurationColumns
	var err error

	materials := cfg.Materials
	if materials == nil {
		materials = []storage.MaterialRule{}
	}
	if cols.materials, err = json.Marshal(materials); err != nil {
		return cols, err
	}
	if cols.rules, err = json.Marshal(cfg.SelectionRules); err != nil {
		return cols, err
	}
	if cols.optimization, err = json.Marshal(cfg.Optimization); err != nil {
		return cols, err
	}
	colors := cfg.Colors
	if colors == nil {
		colors = []storage.Color{}
	}
	if cols.colors, err = json.Marshal(colors); err != nil {
		return cols, err
	}
	return cols, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Storage) CreateConfiguration(ctx context.Context, cfg *storage.Configuration) (int64, error) {
	const op = "storage.mysql.CreateConfiguration"

	cols, err := marshalColumns(cfg)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	stmt := `INSERT INTO material_configurations (name, product, system_key, is_active, materials,
            selection_rules, optimization, colors) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, stmt, cfg.Name, nullable(cfg.Product), cfg.System, cfg.Active,
		cols.materials, cols.rules, cols.optimization, cols.colors)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return 0, fmt.Errorf("%s: %q: %w", op, cfg.Name, storage.ErrConfigurationExists)
		}
		return 0, fmt.Errorf("%s: ошибка сохранения конфигурации: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Storage) UpdateConfiguration(ctx context.Context, cfg *storage.Configuration) error {
	const op = "storage.mysql.UpdateConfiguration"

	cols, err := marshalColumns(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	stmt := `UPDATE material_configurations SET name=?, product=?, system_key=?, is_active=?, materials=?,
            selection_rules=?, optimization=?, colors=? WHERE id=?`

	res, err := s.db.ExecContext(ctx, stmt, cfg.Name, nullable(cfg.Product), cfg.System, cfg.Active,
		cols.materials, cols.rules, cols.optimization, cols.colors, cfg.ID)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return fmt.Errorf("%s: %q: %w", op, cfg.Name, storage.ErrConfigurationExists)
		}
		return fmt.Errorf("%s: ошибка обновления конфигурации: %w", op, err)
	}

	return s.checkAffected(ctx, op, res, cfg.ID)
}

func (s *Storage) DeleteConfiguration(ctx context.Context, id int64) error {
	const op = "storage.mysql.DeleteConfiguration"

	res, err := s.db.ExecContext(ctx, "DELETE FROM material_configurations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return s.checkAffected(ctx, op, res, id)
}

// MySQL не считает строку затронутой, если значения не изменились,
// поэтому при нуле проверяем существование отдельно.
func (s *Storage) checkAffected(ctx context.Context, op string, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM material_configurations WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: конфигурация id=%d: %w", op, id, storage.ErrNotFound)
	}
	return nil
}
