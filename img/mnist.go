package img

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xiyueyiwan/COMP551-Project4/nnet"
	"github.com/xiyueyiwan/COMP551-Project4/stats"
)

const (
	labelMagic = 2049
	imageMagic = 2051
	classes    = 10
)

// Standard file names, each may also have a .gz suffix.
var (
	TrainImages = "train-images-idx3-ubyte"
	TrainLabels = "train-labels-idx1-ubyte"
	TestImages  = "t10k-images-idx3-ubyte"
	TestLabels  = "t10k-labels-idx1-ubyte"
)

type labelHeader struct{ Magic, Num uint32 }

type imageHeader struct{ Magic, Num, Height, Width uint32 }

// MNIST loads the handwritten digit images from a directory with the four idx files.
// The first TrainSize training images form the train split and the rest the validation
// split, the t10k files are the test split. Pixels are scaled to the range 0-1.
type MNIST struct {
	TrainSize int
}

// Load implements the nnet.Provider interface.
func (m MNIST) Load(dir string) (*nnet.DataSets, error) {
	split := m.TrainSize
	if split <= 0 {
		split = 50000
	}
	train, err := LoadSet(dir, TrainImages, TrainLabels)
	if err != nil {
		return nil, err
	}
	test, err := LoadSet(dir, TestImages, TestLabels)
	if err != nil {
		return nil, err
	}
	if split >= len(train.Labels) {
		return nil, errors.Wrapf(nnet.ErrDataShape, "%d training images cannot be split at %d", len(train.Labels), split)
	}
	d := new(nnet.DataSets)
	if d.Train, err = train.Split(0, split); err != nil {
		return nil, err
	}
	if d.Valid, err = train.Split(split, len(train.Labels)); err != nil {
		return nil, err
	}
	if d.Test, err = test.Split(0, len(test.Labels)); err != nil {
		return nil, err
	}
	return d, d.Check()
}

// Set is a list of labelled images.
type Set struct {
	Images []*GrayImage
	Labels []int32
}

// LoadSet reads the image and label files from dir.
func LoadSet(dir, imageFile, labelFile string) (*Set, error) {
	labels, err := readFile(dir, labelFile, readLabels)
	if err != nil {
		return nil, err
	}
	images, err := readFile(dir, imageFile, readImages)
	if err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, errors.Wrapf(nnet.ErrDataShape, "%d images with %d labels", len(images), len(labels))
	}
	return &Set{Images: images, Labels: labels}, nil
}

// Split returns the images from start to end as a data split with one image per row.
func (s *Set) Split(start, end int) (*nnet.Split, error) {
	if start >= end {
		return nil, errors.Wrapf(nnet.ErrDataShape, "empty split %d:%d", start, end)
	}
	nfeat := len(s.Images[start].Pix)
	inputs := make([]float64, 0, (end-start)*nfeat)
	for _, m := range s.Images[start:end] {
		if len(m.Pix) != nfeat {
			return nil, errors.Wrapf(nnet.ErrDataShape, "image size %d, expect %d", len(m.Pix), nfeat)
		}
		for _, v := range m.Pix {
			inputs = append(inputs, float64(v))
		}
	}
	labels := append([]int32(nil), s.Labels[start:end]...)
	return nnet.NewSplit(classes, nfeat, inputs, labels)
}

// Calculate mean and stddev of the pixel values from set of images
func GetStats(imgList ...[]*GrayImage) stats.Average {
	var s stats.Average
	for _, images := range imgList {
		for _, m := range images {
			for _, val := range m.Pix {
				s.Add(float64(val))
			}
		}
	}
	return s
}

// open name from dir, or name.gz if it is not found
func readFile[T any](dir, name string, read func(io.Reader, string) (T, error)) (res T, err error) {
	pathName := filepath.Join(dir, name)
	f, err := os.Open(pathName)
	if os.IsNotExist(err) {
		pathName += ".gz"
		f, err = os.Open(pathName)
	}
	if err != nil {
		return res, err
	}
	defer f.Close()
	var r io.Reader = f
	if filepath.Ext(pathName) == ".gz" {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return res, errors.Wrap(err, pathName)
		}
		defer zr.Close()
		r = zr
	}
	if res, err = read(r, name); err != nil {
		return res, errors.Wrap(err, pathName)
	}
	return res, nil
}

func readImages(r io.Reader, name string) ([]*GrayImage, error) {
	var head imageHeader
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, err
	}
	if head.Magic != imageMagic {
		return nil, errors.Errorf("invalid image file magic number %d", head.Magic)
	}
	n, h, w := int(head.Num), int(head.Height), int(head.Width)
	fmt.Printf("read %d %dx%d images from %s\n", n, h, w, name)
	images := make([]*GrayImage, n)
	pixels := make([]uint8, w*h)
	for i := range images {
		if _, err := io.ReadFull(r, pixels); err != nil {
			return nil, errors.Wrapf(err, "image %d", i)
		}
		m := NewGray(w, h)
		for j, pix := range pixels {
			m.Pix[j] = float32(pix) / 255
		}
		images[i] = m
	}
	return images, nil
}

func readLabels(r io.Reader, name string) ([]int32, error) {
	var head labelHeader
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, err
	}
	if head.Magic != labelMagic {
		return nil, errors.Errorf("invalid label file magic number %d", head.Magic)
	}
	fmt.Printf("read %d labels from %s\n", head.Num, name)
	bytes := make([]byte, head.Num)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return nil, err
	}
	labels := make([]int32, head.Num)
	for i, label := range bytes {
		labels[i] = int32(label)
	}
	return labels, nil
}
