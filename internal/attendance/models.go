package attendance

import "time"

// Student is the roster entry returned by the attendance backend.
type Student struct {
	DNI      string `json:"DNI"`
	Names    string `json:"NOMBRES"`
	Surnames string `json:"APELLIDOS"`
}

// FullName joins names and surnames the way the roster prints them.
func (s Student) FullName() string {
	switch {
	case s.Names == "":
		return s.Surnames
	case s.Surnames == "":
		return s.Names
	default:
		return s.Names + " " + s.Surnames
	}
}

// Validation answers "may this identifier check in".
type Validation struct {
	Valid   bool     `json:"valido"`
	Student *Student `json:"estudiante"`
}

// Registration is the backend's acknowledgement of a check-in.
type Registration struct {
	Message    string            `json:"mensaje,omitempty"`
	Attendance *AttendanceRecord `json:"asistencia,omitempty"`
}

type AttendanceRecord struct {
	ID         int64     `json:"ID,omitempty"`
	DNI        string    `json:"DNI,omitempty"`
	RecordedAt time.Time `json:"FECHA_HORA"`
}

// Outcome is the terminal state of processing one detection.
type Outcome string

const (
	OutcomeRegistered Outcome = "registered"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeInvalid    Outcome = "invalid"
	OutcomeRejected   Outcome = "rejected"
	OutcomeFailed     Outcome = "failed"
)

// Record is what the operator sees for one processed scan. The identifier is
// masked.
type Record struct {
	DNI         string    `json:"dni"`
	Outcome     Outcome   `json:"outcome"`
	StudentName string    `json:"student_name,omitempty"`
	Message     string    `json:"message,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}
