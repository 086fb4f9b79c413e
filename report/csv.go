// Package report writes the per epoch training results of a run to csv, plot and
// database files.
package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Header row of the csv report
var Header = []string{"epoch", "training_loss", "validation_loss"}

// WriteCSV writes one row per epoch numbered from 1 followed by a final best test score row.
// The file is written to a temporary file in the same directory and renamed when complete.
func WriteCSV(filePath string, training, validation []float64, testScore float64) error {
	if len(training) != len(validation) {
		return errors.Errorf("report: %d training values with %d validation values", len(training), len(validation))
	}
	dir, name := filepath.Split(filePath)
	tmpPath := filepath.Join(dir, "."+name)
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(Header)
	for i := range training {
		w.Write([]string{strconv.Itoa(i + 1), format(training[i]), format(validation[i])})
	}
	w.Write([]string{"best test score", format(testScore)})
	w.Flush()
	if err = w.Error(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err = f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err = os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// ReadCSV reads a report written by WriteCSV.
func ReadCSV(filePath string) (training, validation []float64, testScore float64, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return
	}
	if len(recs) < 2 || len(recs[0]) != len(Header) {
		return nil, nil, 0, errors.Errorf("report: %s is not a training report", filePath)
	}
	for i, rec := range recs[1 : len(recs)-1] {
		if len(rec) != 3 || rec[0] != strconv.Itoa(i+1) {
			return nil, nil, 0, errors.Errorf("report: %s invalid row %d", filePath, i+1)
		}
		var t, v float64
		if t, err = strconv.ParseFloat(rec[1], 64); err != nil {
			return
		}
		if v, err = strconv.ParseFloat(rec[2], 64); err != nil {
			return
		}
		training = append(training, t)
		validation = append(validation, v)
	}
	last := recs[len(recs)-1]
	if len(last) != 2 || last[0] != "best test score" {
		return nil, nil, 0, errors.Errorf("report: %s missing test score", filePath)
	}
	testScore, err = strconv.ParseFloat(last[1], 64)
	return
}

func format(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
