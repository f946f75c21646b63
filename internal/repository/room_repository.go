package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// RoomRepository reads bookable rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

type roomRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"name"`
	Capacity     int             `db:"capacity"`
	Type         models.RoomType `db:"room_type"`
	Availability types.JSONText  `db:"availability"`
}

// List returns every room ordered by identifier.
func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, room_type, availability FROM rooms ORDER BY id ASC`
	var rows []roomRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms := make([]models.Room, 0, len(rows))
	for _, row := range rows {
		room := models.Room{ID: row.ID, Name: row.Name, Capacity: row.Capacity, Type: row.Type}
		if err := decodeJSONColumn(row.Availability, &room.Availability); err != nil {
			return nil, fmt.Errorf("room %s availability: %w", row.ID, err)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
