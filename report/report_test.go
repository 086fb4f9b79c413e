package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xiyueyiwan/COMP551-Project4/nnet"
)

func TestWriteCSV(t *testing.T) {
	file := filepath.Join(t.TempDir(), "mlp1dp_test.csv")
	if err := WriteCSV(file, []float64{0.5, 0.3}, []float64{0.4, 0.2}, 0.15); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("\n%s", data)
	expect := "epoch,training_loss,validation_loss\n1,0.5,0.4\n2,0.3,0.2\nbest test score,0.15\n"
	if string(data) != expect {
		t.Errorf("got:\n%s\nexpect:\n%s", data, expect)
	}
	train, valid, score, err := ReadCSV(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(train) != 2 || train[1] != 0.3 || valid[0] != 0.4 || score != 0.15 {
		t.Errorf("read back %v %v %g", train, valid, score)
	}
	entries, _ := os.ReadDir(filepath.Dir(file))
	if len(entries) != 1 {
		t.Errorf("expected only the report file, got %d entries", len(entries))
	}
}

func TestWriteCSVErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.csv")
	if err := WriteCSV(file, []float64{1}, nil, 0); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("report written after error")
	}
	if err := WriteCSV(filepath.Join(dir, "missing", "x.csv"), nil, nil, 0); err == nil {
		t.Error("expected error for missing directory")
	}
	// target is a non-empty directory so the final rename fails
	taken := filepath.Join(dir, "taken.csv")
	if err := os.MkdirAll(filepath.Join(taken, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(taken, []float64{1}, []float64{2}, 3); err == nil {
		t.Error("expected error writing over a directory")
	}
	if _, err := os.Stat(filepath.Join(dir, ".taken.csv")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
	// no epochs and no test score
	empty := filepath.Join(dir, "empty.csv")
	if err := WriteCSV(empty, nil, nil, math.NaN()); err != nil {
		t.Fatal(err)
	}
	_, _, score, err := ReadCSV(empty)
	if err != nil || !math.IsNaN(score) {
		t.Errorf("got score %g err %v", score, err)
	}
}

func testResult() *nnet.Result {
	return &nnet.Result{
		Stats: []nnet.Stats{
			{Epoch: 1, Iter: 4, TrainError: 0.5, ValidError: 0.4, Elapsed: time.Second},
			{Epoch: 2, Iter: 8, TrainError: 0.3, ValidError: 0.2, Elapsed: 2 * time.Second},
			{Epoch: 3, Iter: 12, TrainError: math.NaN(), ValidError: math.NaN(), Elapsed: 3 * time.Second},
		},
		Stop:    nnet.EarlyStopping{BestValidLoss: 0.2, BestIter: 7, TestScore: 0.15, Patience: 10000},
		State:   nnet.EpochExhausted,
		Iters:   12,
		Elapsed: 3 * time.Second,
	}
}

func TestWritePlot(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"errors.svg", "errors.png"} {
		file := filepath.Join(dir, name)
		if err := WritePlot(file, "test run", testResult().Stats, 0.15); err != nil {
			t.Fatal(err)
		}
		fi, err := os.Stat(file)
		if err != nil || fi.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if err := WritePlot(filepath.Join(dir, "errors.xyz"), "bad", testResult().Stats, 0.15); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestStore(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	conf := nnet.Presets()[1]
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	id, err := s.AddRun(conf, testResult(), started)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.AddRun(nnet.Presets()[2], &nnet.Result{Stop: nnet.EarlyStopping{BestValidLoss: math.Inf(1), TestScore: math.NaN()}}, started); err != nil {
		t.Fatal(err)
	}
	runs, err := s.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs", len(runs))
	}
	r := runs[1]
	t.Logf("%+v", r)
	if r.ID != id || r.Name != "mlp1dp_lr01_bs100_std037" || r.Config != conf || r.TestScore != 0.15 ||
		r.State != "epochs exhausted" || !r.Started.Equal(started) || r.Elapsed != 3*time.Second {
		t.Errorf("run mismatch %+v", r)
	}
	if r.Host != Host() || !math.IsNaN(runs[0].TestScore) {
		t.Errorf("got host %q score %g", r.Host, runs[0].TestScore)
	}
	stats, err := s.Epochs(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 || stats[1].ValidError != 0.2 || stats[1].Iter != 8 || !math.IsNaN(stats[2].TrainError) {
		t.Errorf("got epochs %+v", stats)
	}
}
