package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// LecturerRepository reads lecturers for scheduling runs.
type LecturerRepository struct {
	db *sqlx.DB
}

// NewLecturerRepository constructs a LecturerRepository.
func NewLecturerRepository(db *sqlx.DB) *LecturerRepository {
	return &LecturerRepository{db: db}
}

type lecturerRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Department       string         `db:"department"`
	Specializations  pq.StringArray `db:"specializations"`
	QualifiedModules pq.StringArray `db:"qualified_modules"`
	Availability     types.JSONText `db:"availability"`
	Preferences      types.JSONText `db:"preferences"`
}

func (r lecturerRow) toModel() (models.Lecturer, error) {
	lecturer := models.Lecturer{
		ID:               r.ID,
		Name:             r.Name,
		Department:       r.Department,
		Specializations:  []string(r.Specializations),
		QualifiedModules: []string(r.QualifiedModules),
	}
	if err := decodeJSONColumn(r.Availability, &lecturer.Availability); err != nil {
		return models.Lecturer{}, fmt.Errorf("lecturer %s availability: %w", r.ID, err)
	}
	if err := decodeJSONColumn(r.Preferences, &lecturer.Preferences); err != nil {
		return models.Lecturer{}, fmt.Errorf("lecturer %s preferences: %w", r.ID, err)
	}
	return lecturer, nil
}

// List returns every lecturer ordered by identifier.
func (r *LecturerRepository) List(ctx context.Context) ([]models.Lecturer, error) {
	const query = `SELECT id, name, department, specializations, qualified_modules, availability, preferences FROM lecturers ORDER BY id ASC`
	var rows []lecturerRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	lecturers := make([]models.Lecturer, 0, len(rows))
	for _, row := range rows {
		lecturer, err := row.toModel()
		if err != nil {
			return nil, err
		}
		lecturers = append(lecturers, lecturer)
	}
	return lecturers, nil
}

// decodeJSONColumn unmarshals a JSON column. NULL scans as "{}" and is treated as absent.
func decodeJSONColumn(raw types.JSONText, dest interface{}) error {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "{}":
		return nil
	}
	return json.Unmarshal(raw, dest)
}
