package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// GroupRepository reads student groups with their module enrolments.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

type groupRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Size      int            `db:"size"`
	Level     int            `db:"level"`
	ModuleIDs pq.StringArray `db:"module_ids"`
}

// List returns every group ordered by identifier.
func (r *GroupRepository) List(ctx context.Context) ([]models.Group, error) {
	const query = `SELECT g.id, g.name, g.size, g.level, COALESCE(array_agg(e.module_id ORDER BY e.module_id) FILTER (WHERE e.module_id IS NOT NULL), '{}') AS module_ids
FROM groups g LEFT JOIN group_enrolments e ON e.group_id = g.id
GROUP BY g.id, g.name, g.size, g.level ORDER BY g.id ASC`
	var rows []groupRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	groups := make([]models.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, models.Group{
			ID:        row.ID,
			Name:      row.Name,
			Size:      row.Size,
			Level:     row.Level,
			ModuleIDs: []string(row.ModuleIDs),
		})
	}
	return groups, nil
}
