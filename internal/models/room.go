package models

// RoomType enumerates room categories.
type RoomType string

const (
	RoomLecture  RoomType = "LECTURE"
	RoomTutorial RoomType = "TUTORIAL"
	RoomLab      RoomType = "LAB"
	RoomAny      RoomType = "ANY"
)

// Valid reports whether the room type is known.
func (t RoomType) Valid() bool {
	switch t {
	case RoomLecture, RoomTutorial, RoomLab, RoomAny:
		return true
	}
	return false
}

// Accepts reports whether a session of the given type may be held in the room.
func (t RoomType) Accepts(session SessionType) bool {
	if t == RoomAny {
		return true
	}
	return string(t) == string(session)
}

// Room is a bookable teaching space.
type Room struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Capacity     int            `db:"capacity" json:"capacity"`
	Type         RoomType       `db:"room_type" json:"type"`
	Availability []Availability `db:"-" json:"availability"`
}
