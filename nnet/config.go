package nnet

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Early stopping and update constants
const (
	Patience             = 10000
	PatienceIncrease     = 2
	ImprovementThreshold = 0.995
	ClipBound            = 2.0
)

// Gradient engines
const (
	EngineBackprop = "backprop"
	EngineGraph    = "graph"
)

// Training configuration settings
type Config struct {
	Name         string  `json:"name,omitempty"`
	DataSet      string  `json:"dataset"`
	LearningRate float64 `json:"learning_rate"`
	L2Reg        float64 `json:"L2_reg"`
	MaxEpoch     int     `json:"n_epochs"`
	BatchSize    int     `json:"batch_size"`
	Hidden       int     `json:"n_hidden"`
	NoiseStd     float64 `json:"std"`
	Inputs       int     `json:"n_in"`
	Classes      int     `json:"n_out"`
	InitSeed     int64   `json:"init_seed"`
	NoiseSeed    int64   `json:"noise_seed"`
	Engine       string  `json:"engine,omitempty"`
	LogEvery     int     `json:"log_every,omitempty"`
	DebugLevel   int     `json:"debug,omitempty"`
	Profile      bool    `json:"profile,omitempty"`
}

// DefaultConfig returns the default hyperparameters for 28x28 images in 10 classes.
func DefaultConfig() Config {
	return Config{
		DataSet:      "mnist.gob.gz",
		LearningRate: 0.01,
		L2Reg:        0.0001,
		MaxEpoch:     5,
		BatchSize:    50,
		Hidden:       300,
		NoiseStd:     0.1,
		Inputs:       28 * 28,
		Classes:      10,
		InitSeed:     1234,
		NoiseSeed:    234,
		Engine:       EngineBackprop,
	}
}

// Validate checks the hyperparameters, errors wrap ErrConfig.
func (c Config) Validate() error {
	switch {
	case !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0):
		return configErr("learning_rate %v must be positive", c.LearningRate)
	case !(c.L2Reg >= 0):
		return configErr("L2_reg %v must not be negative", c.L2Reg)
	case c.MaxEpoch <= 0:
		return configErr("n_epochs %d must be positive", c.MaxEpoch)
	case c.BatchSize <= 0:
		return configErr("batch_size %d must be positive", c.BatchSize)
	case c.Hidden <= 0:
		return configErr("n_hidden %d must be positive", c.Hidden)
	case !(c.NoiseStd >= 0) || math.IsInf(c.NoiseStd, 0):
		return configErr("std %v must be finite and not negative", c.NoiseStd)
	case c.Inputs < 0 || c.Classes < 0:
		return configErr("n_in %d and n_out %d must not be negative", c.Inputs, c.Classes)
	}
	switch c.Engine {
	case "", EngineBackprop, EngineGraph:
	default:
		return configErr("unknown engine %q", c.Engine)
	}
	return nil
}

// ReportName returns the base name for the report files of this run.
func (c Config) ReportName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("mlp1dp_lr%s_bs%d_std%s", tag(c.LearningRate), c.BatchSize, tag(c.NoiseStd))
}

// 0.037 => 0037
func tag(x float64) string {
	return strings.Replace(strconv.FormatFloat(x, 'f', -1, 64), ".", "", 1)
}

// Load list of configs from a json file, a single object is also accepted.
// Fields missing from the file take their default values.
func LoadConfigs(filePath string) ([]Config, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	fmt.Println("loading config from", filePath)
	var raw []json.RawMessage
	if err = json.Unmarshal(buf, &raw); err != nil {
		raw = []json.RawMessage{buf}
	}
	list := make([]Config, len(raw))
	for i, data := range raw {
		list[i] = DefaultConfig()
		if err := json.Unmarshal(data, &list[i]); err != nil {
			return nil, errors.Wrapf(err, "config %d in %s", i, filePath)
		}
	}
	return list, nil
}

// Save list of configs to JSON file, written to a temporary file first and then renamed.
func SaveConfigs(filePath string, list []Config) error {
	dir, name := filepath.Split(filePath)
	tmpPath := filepath.Join(dir, "."+name)
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	fmt.Println("saving config to", filePath)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(list); err != nil {
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

// Fields returns the json names of the config fields.
func (c Config) Fields() []string {
	st := reflect.TypeOf(c)
	fld := make([]string, st.NumField())
	for i := range fld {
		fld[i] = jsonName(st.Field(i))
	}
	return fld
}

// Get returns the value of a field given its json name.
func (c Config) Get(key string) interface{} {
	s := reflect.ValueOf(c)
	if f, ok := fieldByName(s.Type(), key); ok {
		return s.FieldByIndex(f.Index).Interface()
	}
	return nil
}

func (c Config) String() string {
	str := []string{"== Config =="}
	for _, key := range c.Fields() {
		str = append(str, fmt.Sprintf("%-14s: %v", key, c.Get(key)))
	}
	return strings.Join(str, "\n")
}

// SetString sets the field with the given json name, or Go field name, from a string value.
func (c Config) SetString(key, val string) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	sf, ok := fieldByName(s.Type(), key)
	if !ok {
		return c, configErr("unknown config field %q", key)
	}
	f := s.FieldByIndex(sf.Index)
	var err error
	switch f.Type().Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.String:
		f.SetString(val)
	case reflect.Bool:
		var x bool
		if x, err = strconv.ParseBool(val); err == nil {
			f.SetBool(x)
		}
	default:
		return c, fmt.Errorf("invalid type for SetString: %v", f.Type().Kind())
	}
	if err != nil {
		return c, configErr("%s=%s: %v", key, val, err)
	}
	return c, nil
}

func fieldByName(st reflect.Type, key string) (reflect.StructField, bool) {
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if jsonName(f) == key || f.Name == key {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func jsonName(f reflect.StructField) string {
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
