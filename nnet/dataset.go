package nnet

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DataTypes are the names of the three splits in load order.
var DataTypes = []string{"train", "valid", "test"}

// Split holds the feature matrix with one example per row and the integer class labels.
type Split struct {
	X       *mat.Dense
	Y       []int32
	Classes int
}

// NewSplit creates a split from row major input data with nfeat features per example.
func NewSplit(classes, nfeat int, inputs []float64, labels []int32) (*Split, error) {
	if len(labels) == 0 {
		return nil, shapeErr("empty split")
	}
	if nfeat <= 0 || len(inputs) != nfeat*len(labels) {
		return nil, shapeErr("%d inputs for %d labels with %d features", len(inputs), len(labels), nfeat)
	}
	s := &Split{X: mat.NewDense(len(labels), nfeat, inputs), Y: labels, Classes: classes}
	return s, s.Check()
}

// Len returns number of examples
func (s *Split) Len() int { return len(s.Y) }

// Features returns the number of columns in the feature matrix
func (s *Split) Features() int {
	_, c := s.X.Dims()
	return c
}

// Batches returns the number of complete batches of the given size, a final partial batch is dropped.
func (s *Split) Batches(size int) int {
	if size <= 0 {
		return 0
	}
	return s.Len() / size
}

// Batch returns a view on the inputs and labels for batch index i.
func (s *Split) Batch(i, size int) (*mat.Dense, []int32) {
	start, end := i*size, (i+1)*size
	if i < 0 || end > s.Len() {
		panic(fmt.Sprintf("Batch: index %d out of range for %d examples", i, s.Len()))
	}
	return s.X.Slice(start, end, 0, s.Features()).(*mat.Dense), s.Y[start:end]
}

// Check the inputs and labels are consistent
func (s *Split) Check() error {
	if s == nil || s.X == nil {
		return shapeErr("missing data")
	}
	if r, _ := s.X.Dims(); r != len(s.Y) {
		return shapeErr("%d input rows with %d labels", r, len(s.Y))
	}
	if s.Classes <= 0 {
		return shapeErr("%d classes", s.Classes)
	}
	for i, label := range s.Y {
		if label < 0 || int(label) >= s.Classes {
			return shapeErr("label %d at %d out of range [0,%d)", label, i, s.Classes)
		}
	}
	return nil
}

// DataSets bundles the training, validation and test splits.
type DataSets struct {
	Train, Valid, Test *Split
}

// Get returns split by name
func (d *DataSets) Get(key string) *Split {
	switch key {
	case "train":
		return d.Train
	case "valid":
		return d.Valid
	case "test":
		return d.Test
	}
	return nil
}

// Check each split and that they all have the same features and classes.
func (d *DataSets) Check() error {
	for _, key := range DataTypes {
		if err := d.Get(key).Check(); err != nil {
			return errors.Wrap(err, key)
		}
	}
	nfeat, classes := d.Train.Features(), d.Train.Classes
	for _, key := range DataTypes[1:] {
		s := d.Get(key)
		if s.Features() != nfeat || s.Classes != classes {
			return shapeErr("%s split has %d features and %d classes, train has %d and %d",
				key, s.Features(), s.Classes, nfeat, classes)
		}
	}
	return nil
}

func (d *DataSets) String() string {
	return fmt.Sprintf("train=%d valid=%d test=%d features=%d classes=%d",
		d.Train.Len(), d.Valid.Len(), d.Test.Len(), d.Train.Features(), d.Train.Classes)
}

// Provider loads the three data splits from a source.
type Provider interface {
	Load(source string) (*DataSets, error)
}

// Archive loads data sets from a gob encoded file, gzip compressed if the name ends in .gz.
type Archive struct{}

type archiveSplit struct {
	Classes  int
	Features int
	Inputs   []float64
	Labels   []int32
}

// Load reads the archive and checks the splits.
func (Archive) Load(source string) (*DataSets, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fmt.Println("loading data from", source)
	var r io.Reader = f
	if strings.HasSuffix(source, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, source)
		}
		defer zr.Close()
		r = zr
	}
	dec := gob.NewDecoder(r)
	d := new(DataSets)
	for _, key := range DataTypes {
		var a archiveSplit
		if err := dec.Decode(&a); err != nil {
			return nil, errors.Wrapf(err, "decoding %s split from %s", key, source)
		}
		s, err := NewSplit(a.Classes, a.Features, a.Inputs, a.Labels)
		if err != nil {
			return nil, errors.Wrap(err, key)
		}
		*d.ptr(key) = s
	}
	return d, d.Check()
}

func (d *DataSets) ptr(key string) **Split {
	switch key {
	case "train":
		return &d.Train
	case "valid":
		return &d.Valid
	default:
		return &d.Test
	}
}

// SaveArchive encodes the data sets in the format read by Archive.
// It writes to a temporary file first and renames it when complete.
func SaveArchive(d *DataSets, filePath string) error {
	if err := d.Check(); err != nil {
		return err
	}
	dir, name := filepath.Split(filePath)
	tmpPath := filepath.Join(dir, "."+name)
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	fmt.Println("saving data to", filePath)
	if err = writeArchive(d, f, strings.HasSuffix(filePath, ".gz")); err != nil {
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

func writeArchive(d *DataSets, w io.Writer, compress bool) error {
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(w)
		w = zw
	}
	enc := gob.NewEncoder(w)
	for _, key := range DataTypes {
		s := d.Get(key)
		a := archiveSplit{
			Classes:  s.Classes,
			Features: s.Features(),
			Inputs:   mat.DenseCopyOf(s.X).RawMatrix().Data,
			Labels:   s.Y,
		}
		if err := enc.Encode(&a); err != nil {
			return errors.Wrapf(err, "encoding %s split", key)
		}
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}

// Blobs generates a synthetic classification problem: each class is a Gaussian blob with
// standard deviation Spread around a centre drawn uniformly from [-Scale, Scale] in each feature.
type Blobs struct {
	Classes  int
	Features int
	Spread   float64
	Scale    float64
	Sizes    [3]int
	Seed     int64
}

// Load ignores the source and generates the three splits.
func (b Blobs) Load(source string) (*DataSets, error) {
	if b.Classes <= 0 || b.Features <= 0 {
		return nil, shapeErr("blobs with %d classes and %d features", b.Classes, b.Features)
	}
	rng := rand.New(rand.NewPCG(uint64(b.Seed), 1))
	centres := mat.NewDense(b.Classes, b.Features, nil)
	unif := distuv.Uniform{Min: -b.Scale, Max: b.Scale, Src: rng}
	for i := 0; i < b.Classes; i++ {
		for j := 0; j < b.Features; j++ {
			centres.Set(i, j, unif.Rand())
		}
	}
	noise := distuv.Normal{Mu: 0, Sigma: b.Spread, Src: rng}
	d := new(DataSets)
	for i, key := range DataTypes {
		n := b.Sizes[i]
		inputs := make([]float64, n*b.Features)
		labels := make([]int32, n)
		for row := range labels {
			class := rng.IntN(b.Classes)
			labels[row] = int32(class)
			for j := 0; j < b.Features; j++ {
				inputs[row*b.Features+j] = centres.At(class, j) + noise.Rand()
			}
		}
		s, err := NewSplit(b.Classes, b.Features, inputs, labels)
		if err != nil {
			return nil, errors.Wrap(err, key)
		}
		*d.ptr(key) = s
	}
	return d, d.Check()
}
