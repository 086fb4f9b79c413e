// Command mkdata builds the packed data archive read by dpmlp from the MNIST idx files
// or from generated Gaussian blobs.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/xiyueyiwan/COMP551-Project4/img"
	"github.com/xiyueyiwan/COMP551-Project4/nnet"
)

func main() {
	var (
		mnistDir string
		blobs    bool
		split    int
		out      string
		samples  int
		seed     int64
	)
	flag.StringVar(&mnistDir, "mnist", "mnist", "directory with the MNIST idx files")
	flag.BoolVar(&blobs, "blobs", false, "generate gaussian blobs instead of loading MNIST")
	flag.IntVar(&split, "split", 50000, "number of training images, the rest are used for validation")
	flag.StringVar(&out, "out", "mnist.gob.gz", "output archive")
	flag.IntVar(&samples, "samples", 0, "save this many training images as png files")
	flag.Int64Var(&seed, "seed", 1, "random seed for generated data")
	flag.Parse()

	var p nnet.Provider = img.MNIST{TrainSize: split}
	source := mnistDir
	if blobs {
		p = nnet.Blobs{Classes: 10, Features: 28 * 28, Spread: 1, Scale: 1, Sizes: [3]int{5000, 1000, 1000}, Seed: seed}
		source = "blobs"
	}
	data, err := p.Load(source)
	nnet.CheckErr(err)
	log.Println(data)

	var images []*img.GrayImage
	for i := 0; i < data.Train.Len(); i++ {
		images = append(images, img.FromPixels(28, 28, data.Train.X.RawRowView(i)))
	}
	pix := img.GetStats(images)
	log.Printf("train pixel mean±stddev = %s", pix.String())

	nnet.CheckErr(nnet.SaveArchive(data, out))

	if samples > 0 {
		dir := filepath.Join(filepath.Dir(out), "samples")
		nnet.CheckErr(os.MkdirAll(dir, 0755))
		for i := 0; i < samples && i < len(images); i++ {
			name := filepath.Join(dir, fmt.Sprintf("%05d_%d.png", i, data.Train.Y[i]))
			nnet.CheckErr(img.WritePNG(name, images[i], 4))
		}
		log.Printf("saved %d sample images to %s", min(samples, len(images)), dir)
	}
}
