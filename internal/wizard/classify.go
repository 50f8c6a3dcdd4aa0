package wizard

import (
	"strings"

	"ozzus/pm-tracker/internal/domain"
)

type TaskKind string

const (
	KindStandard    TaskKind = "standard"
	KindMeasurement TaskKind = "measurement"
)

// MeasurementKeywords trigger the measurement requirement when any of them
// appears in a task's text. The match is a plain substring match, so "mm"
// also hits words like "command". Misclassification is accepted.
var MeasurementKeywords = []string{
	"mm",
	"milimetro",
	"milímetro",
	"temperatura",
	"temperature",
	"°c",
	"porcentaje",
	"%",
	"distancia",
	"espesor",
	"espesores",
	"gap",
	"altura",
	"velocidad",
	"rpm",
	"presión",
	"pressure",
	"voltage",
	"voltaje",
	"amp",
	"amper",
	"amperaje",
}

// Classify reports whether a task requires a recorded measurement.
func Classify(task domain.ChecklistTask) TaskKind {
	text := strings.ToLower(task.Title + " " + task.KeyPoints + " " + task.Rationale)
	for _, k := range MeasurementKeywords {
		if strings.Contains(text, k) {
			return KindMeasurement
		}
	}
	return KindStandard
}

func IsMeasurementTask(task domain.ChecklistTask) bool {
	return Classify(task) == KindMeasurement
}
