package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// LoadCSV reads a header-prefixed CSV file whose last column is an integer
// class label and whose other columns are numeric features. Features are
// min-max normalised per column over the whole file.
func LoadCSV(path string) (model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

func ReadCSV(in io.Reader) (model.Dataset, error) {
	r := csv.NewReader(in)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("csv needs at least one feature and a label column, got %d columns", len(header))
	}
	numFeatures := len(header) - 1

	data := model.Dataset{}
	for row := 0; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		features := make([]float64, numFeatures)
		for i := 0; i < numFeatures; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", row, i, err)
			}
			features[i] = v
		}
		label, err := strconv.Atoi(strings.TrimSpace(record[numFeatures]))
		if err != nil || label < 0 {
			return nil, fmt.Errorf("row %d: invalid label %q", row, record[numFeatures])
		}

		data = append(data, model.Sample{Features: features, Label: label})
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("csv contains no rows")
	}

	normalize(data)
	return data, nil
}

func normalize(data model.Dataset) {
	numFeatures := data.NumFeatures()
	mins := make([]float64, numFeatures)
	maxs := make([]float64, numFeatures)
	copy(mins, data[0].Features)
	copy(maxs, data[0].Features)
	for _, s := range data[1:] {
		for j, v := range s.Features {
			mins[j] = min(mins[j], v)
			maxs[j] = max(maxs[j], v)
		}
	}

	for _, s := range data {
		for j, v := range s.Features {
			span := maxs[j] - mins[j]
			if span == 0 {
				s.Features[j] = 0
			} else {
				s.Features[j] = (v - mins[j]) / span
			}
		}
	}
}
