package domain

// Well-known reference data ids seeded at install time.
const (
	StatusOpen               int64 = 1
	StatusInProgress         int64 = 2
	StatusWaitingForResponse int64 = 3
	StatusResolved           int64 = 4
	StatusClosed             int64 = 5
	StatusReopened           int64 = 6

	PriorityLow      int64 = 1
	PriorityMedium   int64 = 2
	PriorityHigh     int64 = 3
	PriorityCritical int64 = 4
)

// Category classifies what a ticket is about.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Priority carries the numeric level the SLA policy is keyed on.
type Priority struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
	Color string `json:"color"`
}

// Status is a lifecycle state. Terminal statuses stop breach detection.
type Status struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Terminal bool   `json:"terminal"`
}
