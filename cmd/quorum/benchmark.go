//
// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package main

import (
	"fmt"
	"strconv"

	"github.com/google/differential-privacy/quorum/benchmark"
	"github.com/google/differential-privacy/quorum/noise"
	"github.com/google/differential-privacy/quorum/task"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBenchmarkCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure the error of the Basic statistics across ε",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := benchmarkConfig(v)
			if err != nil {
				return err
			}
			series, err := benchmark.Run(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range series {
				for _, p := range s.Points {
					fmt.Fprintf(out, "%v\t%g\t%g\n", s.Statistic, p.Epsilon, p.RMSE)
				}
			}
			if path := v.GetString("output"); path != "" {
				return benchmark.Plot("Accuracy of private aggregations", benchmark.Curves(series), path)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSlice("statistics", []string{"mean", "median", "sum", "count"}, "statistics to measure")
	f.Int("samples", benchmark.DefaultConfig.Samples, "contributions per trial")
	pf := cmd.PersistentFlags()
	pf.StringSlice("epsilons", []string{"0.1", "0.3", "1", "3", "10", "30", "100"}, "privacy budgets to measure")
	pf.Float64("delta", 0, "δ passed to every aggregation")
	pf.Int("trials", benchmark.DefaultConfig.Trials, "trials per point")
	pf.String("output", "", "chart file (.png, .svg or .pdf)")
	cmd.AddCommand(newNoiseBenchmarkCmd(v))
	return cmd
}

func newNoiseBenchmarkCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "noise",
		Short: "Measure the magnitude of each noise distribution across ε",
		RunE: func(cmd *cobra.Command, _ []string) error {
			epsilons, err := parseEpsilons(v.GetStringSlice("epsilons"))
			if err != nil {
				return err
			}
			var kinds []noise.Kind
			for _, name := range v.GetStringSlice("kinds") {
				k, err := noise.ParseKind(name)
				if err != nil {
					return err
				}
				kinds = append(kinds, k)
			}
			series, err := benchmark.RunNoise(kinds, epsilons, v.GetFloat64("delta"), v.GetInt("trials"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range series {
				for _, p := range s.Points {
					fmt.Fprintf(out, "%v\t%g\t%g\n", s.Kind, p.Epsilon, p.RMSE)
				}
			}
			if path := v.GetString("output"); path != "" {
				return benchmark.Plot("Noise magnitude at sensitivity 1", benchmark.NoiseCurves(series), path)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("kinds", []string{"laplace", "staircase"}, "noise distributions to measure (laplace, gaussian, staircase)")
	return cmd
}

func parseEpsilons(values []string) ([]float64, error) {
	var out []float64
	for _, e := range values {
		eps, err := strconv.ParseFloat(e, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ε %q: %w", e, err)
		}
		out = append(out, eps)
	}
	return out, nil
}

func benchmarkConfig(v *viper.Viper) (benchmark.Config, error) {
	cfg := benchmark.Config{
		Delta:   v.GetFloat64("delta"),
		Samples: v.GetInt("samples"),
		Trials:  v.GetInt("trials"),
	}
	epsilons, err := parseEpsilons(v.GetStringSlice("epsilons"))
	if err != nil {
		return benchmark.Config{}, err
	}
	cfg.Epsilons = epsilons
	for _, name := range v.GetStringSlice("statistics") {
		var s task.Statistic
		if err := s.UnmarshalText([]byte(name)); err != nil {
			return benchmark.Config{}, err
		}
		cfg.Statistics = append(cfg.Statistics, s)
	}
	return cfg, nil
}
