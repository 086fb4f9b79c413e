package nnet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestConfigValidate(t *testing.T) {
	conf := DefaultConfig()
	if err := conf.Validate(); err != nil {
		t.Fatal(err)
	}
	t.Logf("\n%s", conf)
	conf.LearningRate = -0.1
	err := conf.Validate()
	t.Log(err)
	if !errors.Is(err, ErrConfig) {
		t.Error("expected ErrConfig, got", err)
	}
}

func TestReportName(t *testing.T) {
	conf := DefaultConfig()
	conf.LearningRate = 0.1
	conf.BatchSize = 100
	conf.NoiseStd = 0.37
	if name := conf.ReportName(); name != "mlp1dp_lr01_bs100_std037" {
		t.Errorf("got %s", name)
	}
	conf.Name = "run1"
	if name := conf.ReportName(); name != "run1" {
		t.Errorf("got %s", name)
	}
}

func TestSetString(t *testing.T) {
	conf, err := DefaultConfig().SetString("std", "3.77")
	if err != nil {
		t.Fatal(err)
	}
	if conf, err = conf.SetString("BatchSize", "20"); err != nil {
		t.Fatal(err)
	}
	if conf.NoiseStd != 3.77 || conf.BatchSize != 20 || conf.Get("batch_size") != 20 {
		t.Errorf("got std=%g batch=%d", conf.NoiseStd, conf.BatchSize)
	}
	if _, err = conf.SetString("momentum", "0.9"); !errors.Is(err, ErrConfig) {
		t.Error("expected ErrConfig for unknown field, got", err)
	}
	if _, err = conf.SetString("n_epochs", "ten"); !errors.Is(err, ErrConfig) {
		t.Error("expected ErrConfig for bad value, got", err)
	}
	if conf.Get("nothing") != nil {
		t.Error("Get of unknown field should be nil")
	}
}

func TestLoadConfigs(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "runs.json")
	list := Presets()
	if err := SaveConfigs(file, list); err != nil {
		t.Fatal(err)
	}
	res, err := LoadConfigs(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != len(list) {
		t.Fatalf("got %d configs", len(res))
	}
	for i := range res {
		if res[i] != list[i] {
			t.Errorf("config %d differs:\n%s\n%s", i, res[i], list[i])
		}
	}
	// single object with missing fields takes defaults
	single := filepath.Join(dir, "one.json")
	if err := os.WriteFile(single, []byte(`{"std": 0.5, "n_epochs": 3}`), 0644); err != nil {
		t.Fatal(err)
	}
	if res, err = LoadConfigs(single); err != nil {
		t.Fatal(err)
	}
	expect := DefaultConfig()
	expect.NoiseStd = 0.5
	expect.MaxEpoch = 3
	if len(res) != 1 || res[0] != expect {
		t.Errorf("got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, ".runs.json")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestSaveConfigsRenameFails(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "runs.json")
	if err := os.MkdirAll(filepath.Join(file, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := SaveConfigs(file, Presets()); err == nil {
		t.Error("expected error saving over a directory")
	}
	if _, err := os.Stat(filepath.Join(dir, ".runs.json")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}
