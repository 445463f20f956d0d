package models

import "time"

// TaskType enumerates the farm tasks that are counted and forecast.
type TaskType string

const (
	TaskMating         TaskType = "MATING"
	TaskFarrowing      TaskType = "FARROWING"
	TaskWeaning        TaskType = "WEANING"
	TaskVaccination    TaskType = "VACCINATION"
	TaskShipment       TaskType = "SHIPMENT"
	TaskPregnancyCheck TaskType = "PREGNANCY_CHECK"
)

// TaskTypes lists every task type in report order.
var TaskTypes = []TaskType{
	TaskMating,
	TaskPregnancyCheck,
	TaskFarrowing,
	TaskWeaning,
	TaskVaccination,
	TaskShipment,
}

// IsValid reports whether t is a known task type.
func (t TaskType) IsValid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// BaseEvent is one recorded task occurrence, for example a weaning. Forecasts
// project future tasks from them. Group names the animal cohort the event
// belongs to, a sow or a pen. Quantity is the number of animals the event
// moved, for example the piglets of a weaning; zero or less counts as one.
type BaseEvent struct {
	FarmID   int64     `bson:"farm_id" json:"farm_id"`
	Task     TaskType  `bson:"task" json:"task"`
	Group    string    `bson:"group" json:"group"`
	Date     time.Time `bson:"date" json:"date"`
	Quantity int       `bson:"quantity" json:"quantity"`
}

// Heads returns the number of animals the event stands for.
func (e BaseEvent) Heads() int {
	if e.Quantity <= 0 {
		return 1
	}
	return e.Quantity
}
