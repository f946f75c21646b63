package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// ModuleRepository reads modules and their weekly session requirements.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository constructs a ModuleRepository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

type moduleRow struct {
	ID           string         `db:"id"`
	Code         string         `db:"code"`
	Name         string         `db:"name"`
	Level        int            `db:"level"`
	Semester     int            `db:"semester"`
	Requirements types.JSONText `db:"requirements"`
	SlotDay      sql.NullInt64  `db:"slot_day"`
}

func (r moduleRow) toModel() (models.Module, error) {
	module := models.Module{
		ID:       r.ID,
		Code:     r.Code,
		Name:     r.Name,
		Level:    r.Level,
		Semester: r.Semester,
	}
	if err := decodeJSONColumn(r.Requirements, &module.Requirements); err != nil {
		return models.Module{}, fmt.Errorf("module %s requirements: %w", r.ID, err)
	}
	if r.SlotDay.Valid {
		day := int(r.SlotDay.Int64)
		module.SlotDay = &day
	}
	return module, nil
}

// ListBySemester returns the modules taught in semester. Zero lists every module.
func (r *ModuleRepository) ListBySemester(ctx context.Context, semester int) ([]models.Module, error) {
	query := `SELECT id, code, name, level, semester, requirements, slot_day FROM modules`
	var args []interface{}
	if semester > 0 {
		query += ` WHERE semester = $1`
		args = append(args, semester)
	}
	query += ` ORDER BY id ASC`

	var rows []moduleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	modules := make([]models.Module, 0, len(rows))
	for _, row := range rows {
		module, err := row.toModel()
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}
