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

// Binary quorum runs the aggregation platform, a contributing worker, or the
// accuracy benchmark.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		log.Exitf("quorum: %v", err)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "quorum",
		Short:         "Quorum-gated differentially private aggregation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// glog reads its flags from the Go flag set.
			flag.CommandLine.Parse(nil)
			return initConfig(v, cfgFile, cmd.Flags())
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.AddCommand(newServeCmd(v), newWorkerCmd(v), newBenchmarkCmd(v))
	return root
}

// initConfig binds flags, QUORUM_* environment variables and the optional
// config file, in increasing order of precedence: file, environment, flags.
func initConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix("quorum")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	log.Infof("Using config file %s", v.ConfigFileUsed())
	return nil
}
