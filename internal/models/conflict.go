package models

import "fmt"

// ConflictKind classifies a hard-constraint violation.
type ConflictKind string

const (
	ConflictRoomDoubleBooked     ConflictKind = "ROOM_DOUBLE_BOOKED"
	ConflictLecturerDoubleBooked ConflictKind = "LECTURER_DOUBLE_BOOKED"
	ConflictGroupDoubleBooked    ConflictKind = "GROUP_DOUBLE_BOOKED"
	ConflictCapacityExceeded     ConflictKind = "CAPACITY_EXCEEDED"
	ConflictTypeMismatch         ConflictKind = "TYPE_MISMATCH"
	ConflictAvailability         ConflictKind = "AVAILABILITY_VIOLATION"
	ConflictLecturerUnqualified  ConflictKind = "LECTURER_UNQUALIFIED"
	ConflictUnknownEntity        ConflictKind = "UNKNOWN_ENTITY"
)

// Conflict is a detected hard-constraint violation in an assembled schedule.
type Conflict struct {
	Kind          ConflictKind `json:"kind"`
	AssignmentIDs []string     `json:"assignment_ids"`
	Description   string       `json:"description"`
}

// ConflictError carries conflicts found while validating manual edits or publishing.
type ConflictError struct {
	Message   string     `json:"message"`
	Conflicts []Conflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Conflicts) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Conflicts[0].Description)
}
