package nnet

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

var (
	// ErrConfig is returned for invalid hyperparameters before any computation starts.
	ErrConfig = errors.New("invalid configuration")
	// ErrDataShape is returned when data or parameter dimensions do not match.
	ErrDataShape = errors.New("dimension mismatch")
)

// NumericError is a non-fatal warning for a loss or gradient with non-finite values.
type NumericError struct {
	Epoch int
	Iter  int
	What  string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("non-finite %s at epoch %d iteration %d", e.What, e.Epoch, e.Iter)
}

func configErr(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

func shapeErr(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDataShape, format, args...)
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
