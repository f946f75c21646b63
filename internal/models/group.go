package models

// Group is a cohort of students that attends sessions together.
type Group struct {
	ID        string   `db:"id" json:"id"`
	Name      string   `db:"name" json:"name"`
	Size      int      `db:"size" json:"size"`
	Level     int      `db:"level" json:"level"`
	ModuleIDs []string `db:"-" json:"module_ids"`
}
