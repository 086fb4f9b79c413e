package nnet

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/xiyueyiwan/COMP551-Project4/num"
	"github.com/xiyueyiwan/COMP551-Project4/stats"
	"gonum.org/v1/gonum/mat"
)

// number of periods for the smoothed validation error
const emaN = 10

// State of a training run
type State int

const (
	Running State = iota
	EarlyStopped
	EpochExhausted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case EarlyStopped:
		return "early stopped"
	case EpochExhausted:
		return "epochs exhausted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Training statistics recorded at the end of each completed epoch. The errors are from the
// most recent validation check, NaN if there has not been one yet.
type Stats struct {
	Epoch      int
	Iter       int
	TrainError float64
	ValidError float64
	Elapsed    time.Duration
}

// EarlyStopping state, updated when the validation error reaches a new best value.
type EarlyStopping struct {
	BestValidLoss float64
	BestIter      int
	TestScore     float64
	Patience      int
}

// Checkpoint is passed to the Tester after each validation check.
type Checkpoint struct {
	Epoch      int
	Batch      int
	Batches    int
	Iter       int
	TrainError float64
	ValidError float64
	Best       bool
	Stop       EarlyStopping
}

// Result of a training run
type Result struct {
	Stats    []Stats
	Stop     EarlyStopping
	State    State
	Iters    int
	Warnings []error
	Best     *Network
	Elapsed  time.Duration
}

// Training and validation errors per epoch.
func (r *Result) Errors() (training, validation []float64) {
	for _, s := range r.Stats {
		training = append(training, s.TrainError)
		validation = append(validation, s.ValidError)
	}
	return training, validation
}

// Tester interface is notified after each validation check and each completed epoch.
type Tester interface {
	Validate(c Checkpoint)
	Epoch(s Stats)
}

// Reporter may be implemented by a Tester to also receive warnings and the final result.
type Reporter interface {
	Warning(err error)
	Done(res *Result)
}

// TestLogger is a Tester which writes progress to an io.Writer.
type TestLogger struct {
	W        io.Writer
	LogEvery int
	avg      stats.EMA
}

// Create a new tester which logs progress to w every logEvery epochs, or every epoch if logEvery is 0.
func NewTestLogger(w io.Writer, logEvery int) *TestLogger {
	return &TestLogger{W: w, LogEvery: logEvery}
}

func (t *TestLogger) Validate(c Checkpoint) {
	t.avg = stats.EMA(t.avg.Add(c.ValidError, emaN))
	fmt.Fprintf(t.W, "epoch %d, minibatch %d/%d, validation error %f %%\n",
		c.Epoch, c.Batch+1, c.Batches, c.ValidError*100)
	if c.Best {
		fmt.Fprintf(t.W, "     epoch %d, minibatch %d/%d, test error of best model %f %%\n",
			c.Epoch, c.Batch+1, c.Batches, c.Stop.TestScore*100)
	}
}

func (t *TestLogger) Epoch(s Stats) {
	if t.LogEvery == 0 || s.Epoch%t.LogEvery == 0 {
		fmt.Fprintf(t.W, "epoch %3d:  train error =%6.2f%%  valid error =%6.2f%%  valid avg =%6.2f%%  time %s\n",
			s.Epoch, s.TrainError*100, s.ValidError*100, float64(t.avg)*100, s.Elapsed.Round(10*time.Millisecond))
	}
}

func (t *TestLogger) Warning(err error) {
	fmt.Fprintln(t.W, "warning:", err)
}

func (t *TestLogger) Done(res *Result) {
	fmt.Fprintf(t.W, "Optimization complete (%s). Best validation score of %f %% obtained at iteration %d, with test performance %f %%\n",
		res.State, res.Stop.BestValidLoss*100, res.Stop.BestIter+1, res.Stop.TestScore*100)
	fmt.Fprintf(t.W, "run time: %s\n", res.Elapsed.Round(10*time.Millisecond))
}

// Trainer runs minibatch gradient descent with noisy updates and early stopping.
type Trainer struct {
	Config
	Data   *DataSets
	Net    *Network
	Engine GradientEngine
	Step   *NoisyStep
	Test   Tester
	// initial patience in iterations
	Patience int
	prof     *num.Profile
}

// NewTrainer validates the config against the data and creates a new network, gradient
// engine and optimizer. Inputs and Classes are taken from the data if they are zero.
func NewTrainer(conf Config, data *DataSets, test Tester) (*Trainer, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, shapeErr("no data")
	}
	if err := data.Check(); err != nil {
		return nil, err
	}
	nIn, nOut := data.Train.Features(), data.Train.Classes
	if conf.Inputs == 0 {
		conf.Inputs = nIn
	}
	if conf.Classes == 0 {
		conf.Classes = nOut
	}
	if conf.Inputs != nIn || conf.Classes != nOut {
		return nil, shapeErr("config has n_in=%d n_out=%d, data has %d features in %d classes",
			conf.Inputs, conf.Classes, nIn, nOut)
	}
	for _, key := range DataTypes {
		if s := data.Get(key); s.Batches(conf.BatchSize) == 0 {
			return nil, configErr("batch_size %d larger than %s split of %d examples", conf.BatchSize, key, s.Len())
		}
	}
	t := &Trainer{Config: conf, Data: data, Test: test, Patience: Patience}
	var err error
	if t.Net, err = New(conf, nIn, nOut, num.NewRand(conf.InitSeed)); err != nil {
		return nil, err
	}
	if t.Engine, err = NewEngine(conf, nIn, nOut); err != nil {
		return nil, err
	}
	t.Step = NewNoisyStep(conf.LearningRate, conf.NoiseStd, num.NewRand(conf.NoiseSeed))
	t.prof = num.NewProfile(conf.Profile)
	if conf.DebugLevel >= 1 {
		fmt.Println(t.Net)
	}
	return t, nil
}

// Train creates a trainer for the config and runs it.
func Train(conf Config, data *DataSets, test Tester) (*Result, error) {
	t, err := NewTrainer(conf, data, test)
	if err != nil {
		return nil, err
	}
	return t.Run()
}

// Run trains until the patience is exhausted or MaxEpoch epochs are complete.
// An error is only returned if the computation cannot continue, non-finite costs and
// gradients are collected in Result.Warnings.
func (t *Trainer) Run() (*Result, error) {
	start := time.Now()
	bs := t.BatchSize
	nTrain := t.Data.Train.Batches(bs)
	res := &Result{
		State: Running,
		Stop: EarlyStopping{
			BestValidLoss: math.Inf(1),
			TestScore:     math.NaN(),
			Patience:      t.Patience,
		},
	}
	freq := max(1, min(nTrain, res.Stop.Patience/2))
	lastTrain, lastValid := math.NaN(), math.NaN()
	iter := 0
	for epoch := 1; res.State == Running; epoch++ {
		for batch := 0; batch < nTrain; batch++ {
			iter = (epoch-1)*nTrain + batch
			res.Iters = iter + 1
			x, y := t.Data.Train.Batch(batch, bs)
			var cost float64
			var grads []*mat.Dense
			var err error
			t.prof.Time("gradients", func() { cost, grads, err = t.Engine.Gradients(t.Net, x, y) })
			if err != nil {
				return res, errors.Wrapf(err, "epoch %d batch %d", epoch, batch)
			}
			if math.IsNaN(cost) || math.IsInf(cost, 0) {
				t.warn(res, &NumericError{Epoch: epoch, Iter: iter, What: "cost"})
			}
			t.prof.Time("noisy step", func() { err = t.Step.Apply(t.Net.Params(), grads) })
			if err != nil {
				var ne *NumericError
				if !errors.As(err, &ne) {
					return res, errors.Wrapf(err, "epoch %d batch %d", epoch, batch)
				}
				ne.Epoch, ne.Iter = epoch, iter
				t.warn(res, ne)
			}
			if t.DebugLevel >= 2 {
				fmt.Printf("epoch %d batch %d cost %.6f\n", epoch, batch, cost)
			}
			if (iter+1)%freq == 0 {
				var cp Checkpoint
				t.prof.Time("validate", func() { cp, err = t.validate(res, epoch, batch, iter) })
				if err != nil {
					return res, err
				}
				lastTrain, lastValid = cp.TrainError, cp.ValidError
				if t.Test != nil {
					t.Test.Validate(cp)
				}
			}
			if res.Stop.Patience <= iter {
				res.State = EarlyStopped
				break
			}
		}
		if res.State == EarlyStopped {
			break
		}
		s := Stats{Epoch: epoch, Iter: iter + 1, TrainError: lastTrain, ValidError: lastValid, Elapsed: time.Since(start)}
		res.Stats = append(res.Stats, s)
		if t.Test != nil {
			t.Test.Epoch(s)
		}
		if epoch >= t.MaxEpoch {
			res.State = EpochExhausted
		}
	}
	res.Elapsed = time.Since(start)
	if t.prof.Enabled() {
		t.prof.Print(os.Stdout)
	}
	if r, ok := t.Test.(Reporter); ok {
		r.Done(res)
	}
	return res, nil
}

// evaluate the current parameters on the validation and training sets and update the
// early stopping state on a new best validation error.
func (t *Trainer) validate(res *Result, epoch, batch, iter int) (Checkpoint, error) {
	cp := Checkpoint{Epoch: epoch, Batch: batch, Batches: t.Data.Train.Batches(t.BatchSize), Iter: iter}
	var err error
	if cp.ValidError, err = t.Net.SplitError(t.Data.Valid, t.BatchSize); err != nil {
		return cp, errors.Wrap(err, "valid")
	}
	if cp.TrainError, err = t.Net.SplitError(t.Data.Train, t.BatchSize); err != nil {
		return cp, errors.Wrap(err, "train")
	}
	stop := &res.Stop
	if cp.ValidError < stop.BestValidLoss {
		if cp.ValidError < stop.BestValidLoss*ImprovementThreshold {
			stop.Patience = max(stop.Patience, iter*PatienceIncrease)
		}
		stop.BestValidLoss = cp.ValidError
		stop.BestIter = iter
		if stop.TestScore, err = t.Net.SplitError(t.Data.Test, t.BatchSize); err != nil {
			return cp, errors.Wrap(err, "test")
		}
		if res.Best == nil {
			res.Best = t.Net.Clone()
		} else if err = t.Net.CopyTo(res.Best); err != nil {
			return cp, err
		}
		cp.Best = true
	}
	cp.Stop = *stop
	return cp, nil
}

func (t *Trainer) warn(res *Result, err error) {
	res.Warnings = append(res.Warnings, err)
	if r, ok := t.Test.(Reporter); ok {
		r.Warning(err)
	} else if t.DebugLevel >= 1 {
		fmt.Println("warning:", err)
	}
}
