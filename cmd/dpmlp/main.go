// Command dpmlp trains a one hidden layer perceptron with clipped and noise perturbed
// gradients and writes a csv report of the training and validation error for each run.
//
// With no flags or arguments the three standard noise levels are run.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xiyueyiwan/COMP551-Project4/img"
	"github.com/xiyueyiwan/COMP551-Project4/nnet"
	"github.com/xiyueyiwan/COMP551-Project4/report"
	"github.com/xiyueyiwan/COMP551-Project4/stats"
)

type options struct {
	out    string
	plot   string
	db     string
	sweep  string
	config string
}

func main() {
	log.SetFlags(log.LstdFlags)
	conf := nnet.DefaultConfig()
	var opt options

	// override config settings from command line
	flag.Float64Var(&conf.LearningRate, "learning_rate", conf.LearningRate, "learning rate")
	flag.Float64Var(&conf.L2Reg, "L2_reg", conf.L2Reg, "L2 weight regularisation")
	flag.IntVar(&conf.MaxEpoch, "n_epochs", conf.MaxEpoch, "max epochs")
	flag.StringVar(&conf.DataSet, "dataset", conf.DataSet, "data archive file, MNIST idx directory or blobs")
	flag.IntVar(&conf.BatchSize, "batch_size", conf.BatchSize, "minibatch size")
	flag.IntVar(&conf.Hidden, "n_hidden", conf.Hidden, "hidden layer units")
	flag.Float64Var(&conf.NoiseStd, "std", conf.NoiseStd, "gradient noise standard deviation")
	flag.StringVar(&conf.Engine, "engine", conf.Engine, "gradient engine: backprop or graph")
	flag.Int64Var(&conf.InitSeed, "seed", conf.InitSeed, "weight init random seed")
	flag.Int64Var(&conf.NoiseSeed, "noise_seed", conf.NoiseSeed, "gradient noise random seed")
	flag.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "debug logging level")
	flag.IntVar(&conf.LogEvery, "log_every", conf.LogEvery, "log stats every n epochs")
	flag.BoolVar(&conf.Profile, "profile", conf.Profile, "print profiling info")
	flag.StringVar(&opt.out, "out", ".", "report output directory")
	flag.StringVar(&opt.plot, "plot", "", "also write error plot in this format (svg or png)")
	flag.StringVar(&opt.db, "db", "", "sqlite database to record runs")
	flag.StringVar(&opt.sweep, "sweep", "", "tune parameters as name=v1,v2;name2=v3,v4")
	flag.StringVar(&opt.config, "config", "", "json file with list of configs to run")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [opts] [key=value ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	list, err := getConfigs(conf, opt)
	nnet.CheckErr(err)

	var store *report.Store
	if opt.db != "" {
		store, err = report.OpenStore(opt.db)
		nnet.CheckErr(err)
		defer store.Close()
		log.Printf("recording runs to %s on %s", opt.db, report.Host())
	}
	failed := 0
	cache := map[string]*nnet.DataSets{}
	var scores []float64
	for i, c := range list {
		log.Printf("run %d/%d: %s", i+1, len(list), c.ReportName())
		score, err := run(c, opt, store, cache)
		if err != nil {
			log.Printf("run %s failed: %v", c.ReportName(), err)
			failed++
			continue
		}
		scores = append(scores, score)
	}
	if len(scores) > 1 {
		mean, std := stats.Summary(scores)
		log.Printf("best test score over %d runs: %.3f%% stddev %.3f", len(scores), mean*100, std*100)
	}
	if failed > 0 {
		log.Printf("%d of %d runs failed", failed, len(list))
		if store != nil {
			store.Close()
		}
		os.Exit(1)
	}
}

// get list of configs from the presets, config file or command line
func getConfigs(conf nnet.Config, opt options) ([]nnet.Config, error) {
	var err error
	for _, arg := range flag.Args() {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid argument %q: expecting key=value", arg)
		}
		if conf, err = conf.SetString(key, val); err != nil {
			return nil, err
		}
	}
	switch {
	case opt.config != "":
		return nnet.LoadConfigs(opt.config)
	case opt.sweep != "":
		params, err := nnet.ParseTune(opt.sweep)
		if err != nil {
			return nil, err
		}
		return nnet.Sweep(conf, params)
	case flag.NFlag() == 0 && flag.NArg() == 0:
		return nnet.Presets(), nil
	}
	return []nnet.Config{conf}, nil
}

// train the network for one config and write the reports
func run(conf nnet.Config, opt options, store *report.Store, cache map[string]*nnet.DataSets) (float64, error) {
	data, ok := cache[conf.DataSet]
	if !ok {
		var err error
		if data, err = loadData(conf.DataSet); err != nil {
			return 0, err
		}
		cache[conf.DataSet] = data
		log.Println(data)
	}
	started := time.Now()
	res, err := nnet.Train(conf, data, nnet.NewTestLogger(os.Stdout, conf.LogEvery))
	if err != nil {
		return 0, err
	}
	for _, w := range res.Warnings {
		log.Println("warning:", w)
	}
	name := filepath.Join(opt.out, conf.ReportName())
	training, validation := res.Errors()
	if err = report.WriteCSV(name+".csv", percent(training), percent(validation), res.Stop.TestScore*100); err != nil {
		return 0, err
	}
	log.Println("wrote report", name+".csv")
	if opt.plot != "" {
		if err = report.WritePlot(name+"."+opt.plot, conf.ReportName(), res.Stats, res.Stop.TestScore); err != nil {
			return 0, err
		}
	}
	if store != nil {
		id, err := store.AddRun(conf, res, started)
		if err != nil {
			return 0, err
		}
		log.Printf("saved run %d", id)
	}
	return res.Stop.TestScore, nil
}

func loadData(source string) (*nnet.DataSets, error) {
	var p nnet.Provider = nnet.Archive{}
	if source == "blobs" {
		p = nnet.Blobs{Classes: 10, Features: 28 * 28, Spread: 1, Scale: 1, Sizes: [3]int{5000, 1000, 1000}, Seed: 1}
	} else if fi, err := os.Stat(source); err == nil && fi.IsDir() {
		p = img.MNIST{}
	}
	return p.Load(source)
}

func percent(vals []float64) []float64 {
	res := make([]float64, len(vals))
	for i, v := range vals {
		res[i] = v * 100
	}
	return res
}
