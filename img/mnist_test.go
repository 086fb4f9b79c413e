package img

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/xiyueyiwan/COMP551-Project4/nnet"
)

// write n 2x3 images where every pixel of image i has value i*10
func writeIdx(t *testing.T, dir, imageFile, labelFile string, n int, compress bool) {
	var img, lab bytes.Buffer
	binary.Write(&img, binary.BigEndian, imageHeader{Magic: imageMagic, Num: uint32(n), Height: 2, Width: 3})
	binary.Write(&lab, binary.BigEndian, labelHeader{Magic: labelMagic, Num: uint32(n)})
	for i := 0; i < n; i++ {
		img.Write(bytes.Repeat([]byte{byte(i * 10)}, 6))
		lab.WriteByte(byte(i % classes))
	}
	write := func(name string, data []byte) {
		path := filepath.Join(dir, name)
		if compress {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write(data)
			zw.Close()
			data, path = buf.Bytes(), path+".gz"
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(imageFile, img.Bytes())
	write(labelFile, lab.Bytes())
}

func TestMNIST(t *testing.T) {
	dir := t.TempDir()
	writeIdx(t, dir, TrainImages, TrainLabels, 12, false)
	writeIdx(t, dir, TestImages, TestLabels, 5, true)
	d, err := MNIST{TrainSize: 8}.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Log(d)
	if d.Train.Len() != 8 || d.Valid.Len() != 4 || d.Test.Len() != 5 || d.Train.Features() != 6 {
		t.Fatalf("got %s", d)
	}
	if v := d.Valid.X.At(1, 5); math.Abs(v-90.0/255) > 1e-6 {
		t.Errorf("valid image 1 pixel = %g", v)
	}
	if d.Valid.Y[0] != 8 || d.Test.Y[4] != 4 {
		t.Errorf("labels %v %v", d.Valid.Y, d.Test.Y)
	}
	if _, err := (MNIST{TrainSize: 12}).Load(dir); !errors.Is(err, nnet.ErrDataShape) {
		t.Error("expected ErrDataShape, got", err)
	}
	if _, err := (MNIST{}).Load(t.TempDir()); err == nil {
		t.Error("expected error for missing files")
	}
}

func TestBadMagic(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, labelHeader{Magic: imageMagic, Num: 1})
	if _, err := readLabels(&buf, "test"); err == nil {
		t.Error("expected error for wrong magic number")
	}
}

func TestImage(t *testing.T) {
	m := FromPixels(3, 2, []float64{0, 0.5, 1, 1, 0.5, 0})
	if g := m.GrayAt(2, 0); g.Y != 1 {
		t.Errorf("pixel (2,0) = %g", g.Y)
	}
	m.Set(0, 1, Gray{Y: 0.25})
	if m.Pix[3] != 0.25 || m.GrayAt(5, 5) != (Gray{}) {
		t.Errorf("got %v", m.Pix)
	}
	st := GetStats([]*GrayImage{m})
	t.Logf("pixel stats %s", st.String())
	if st.Count != 6 || math.Abs(st.Mean-0.375) > 1e-6 {
		t.Errorf("got stats %+v", st)
	}
	file := filepath.Join(t.TempDir(), "digit.png")
	if err := WritePNG(file, m, 4); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(file); err != nil || fi.Size() == 0 {
		t.Error("png not written", err)
	}
	dir := t.TempDir()
	taken := filepath.Join(dir, "taken.png")
	if err := os.MkdirAll(filepath.Join(taken, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := WritePNG(taken, m, 1); err == nil {
		t.Error("expected error writing over a directory")
	}
	if _, err := os.Stat(filepath.Join(dir, ".taken.png")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}
