package common

import (
	"fmt"
	"math"
	"strings"
)

func CalculateAverageFloat64(numbers []float64) float64 {
	if len(numbers) == 0 {
		return 0
	}

	var sum float64
	for _, number := range numbers {
		sum += number
	}

	return sum / float64(len(numbers))
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func GetClientTrainSubject(clientId int) string {
	return fmt.Sprintf("%s.%d.%s", CLIENT_TRAIN_SUBJECT_PREFIX, clientId, CLIENT_TRAIN_SUBJECT_SUFFIX)
}

func GetClientEvaluateSubject(clientId int) string {
	return fmt.Sprintf("%s.%d.%s", CLIENT_TRAIN_SUBJECT_PREFIX, clientId, CLIENT_EVALUATE_SUBJECT_SUFFIX)
}

func FormatClientIds(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprint(id))
	}

	return "[" + strings.Join(parts, " ") + "]"
}
