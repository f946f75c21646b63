package timetable

import (
	"sort"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// Catalog is an ID-indexed, read-only view over a SchedulingInput.
type Catalog struct {
	lecturers map[string]*models.Lecturer
	rooms     map[string]*models.Room
	groups    map[string]*models.Group
	modules   map[string]*models.Module

	lecturerIDs []string
	roomIDs     []string
	groupIDs    []string
}

// NewCatalog indexes the input. Later duplicates win; Validate rejects duplicates beforehand.
func NewCatalog(input models.SchedulingInput) *Catalog {
	c := &Catalog{
		lecturers: make(map[string]*models.Lecturer, len(input.Lecturers)),
		rooms:     make(map[string]*models.Room, len(input.Rooms)),
		groups:    make(map[string]*models.Group, len(input.Groups)),
		modules:   make(map[string]*models.Module, len(input.Modules)),
	}
	for i := range input.Lecturers {
		c.lecturers[input.Lecturers[i].ID] = &input.Lecturers[i]
	}
	for i := range input.Rooms {
		c.rooms[input.Rooms[i].ID] = &input.Rooms[i]
	}
	for i := range input.Groups {
		c.groups[input.Groups[i].ID] = &input.Groups[i]
	}
	for i := range input.Modules {
		c.modules[input.Modules[i].ID] = &input.Modules[i]
	}
	c.lecturerIDs = sortedKeys(c.lecturers)
	c.roomIDs = sortedKeys(c.rooms)
	c.groupIDs = sortedKeys(c.groups)
	return c
}

func (c *Catalog) Lecturer(id string) (*models.Lecturer, bool) {
	l, ok := c.lecturers[id]
	return l, ok
}

func (c *Catalog) Room(id string) (*models.Room, bool) {
	r, ok := c.rooms[id]
	return r, ok
}

func (c *Catalog) Group(id string) (*models.Group, bool) {
	g, ok := c.groups[id]
	return g, ok
}

func (c *Catalog) Module(id string) (*models.Module, bool) {
	m, ok := c.modules[id]
	return m, ok
}

// QualifiedLecturers returns lecturer IDs qualified for the module, sorted.
func (c *Catalog) QualifiedLecturers(moduleID string) []string {
	var ids []string
	for _, id := range c.lecturerIDs {
		if c.lecturers[id].QualifiedFor(moduleID) {
			ids = append(ids, id)
		}
	}
	return ids
}

// CompatibleRooms returns room IDs whose type and capacity suit the session, sorted.
func (c *Catalog) CompatibleRooms(session models.SessionType, groupSize int) []string {
	var ids []string
	for _, id := range c.roomIDs {
		room := c.rooms[id]
		if room.Type.Accepts(session) && room.Capacity >= groupSize {
			ids = append(ids, id)
		}
	}
	return ids
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
