package nnet

import (
	"fmt"
	"strings"
)

// TuneParams lists the values to try for one config field, given by its json name.
type TuneParams struct {
	Name   string
	Values []string
}

// Presets returns the three standard runs which differ only in the noise level.
// Report names follow mlp1dp_lr01_bs100_std377 with the noise level digits at the end.
func Presets() []Config {
	var list []Config
	for _, std := range []float64{3.77, 0.37, 0.037} {
		c := DefaultConfig()
		c.LearningRate = 0.01
		c.MaxEpoch = 100
		c.Hidden = 500
		c.BatchSize = 100
		c.NoiseStd = std
		c.Name = "mlp1dp_lr01_bs100_std" + tag(std)
		list = append(list, c)
	}
	return list
}

// ParseTune parses a list of tuning parameters in the form "name=v1,v2;name2=v3,v4".
func ParseTune(s string) ([]TuneParams, error) {
	var params []TuneParams
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, vals, ok := strings.Cut(item, "=")
		if !ok || name == "" || vals == "" {
			return nil, configErr("invalid tune parameter %q", item)
		}
		p := TuneParams{Name: strings.TrimSpace(name)}
		for _, v := range strings.Split(vals, ",") {
			p.Values = append(p.Values, strings.TrimSpace(v))
		}
		params = append(params, p)
	}
	return params, nil
}

// Sweep returns a config for each combination of the tuning parameter values, the first
// value of each parameter is applied to the base config. Runs which vary fields not
// included in the default report name are given a name with those values appended.
func Sweep(conf Config, params []TuneParams) ([]Config, error) {
	var err error
	for _, p := range params {
		if len(p.Values) == 0 {
			return nil, configErr("no values for tune parameter %s", p.Name)
		}
		if conf, err = conf.SetString(p.Name, p.Values[0]); err != nil {
			return nil, err
		}
	}
	list, err := permute(conf, params, len(params)-1, []Config{conf})
	if err != nil {
		return nil, err
	}
	if conf.Name == "" {
		for i := range list {
			list[i].Name = sweepName(list[i], params)
		}
	}
	return list, nil
}

func permute(conf Config, params []TuneParams, n int, list []Config) ([]Config, error) {
	if n < 0 {
		return list, nil
	}
	var err error
	for i, val := range params[n].Values {
		if i > 0 {
			if conf, err = conf.SetString(params[n].Name, val); err != nil {
				return nil, err
			}
			list = append(list, conf)
		}
		if list, err = permute(conf, params, n-1, list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func sweepName(c Config, params []TuneParams) string {
	name := c.ReportName()
	for _, p := range params {
		switch p.Name {
		case "learning_rate", "LearningRate", "batch_size", "BatchSize", "std", "NoiseStd":
			continue
		}
		name += fmt.Sprintf("_%s%s", p.Name, strings.Replace(fmt.Sprint(c.Get(p.Name)), ".", "", 1))
	}
	return name
}
