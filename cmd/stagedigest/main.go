// Command stagedigest prints BLAKE2b digests of files, hashing several at
// once through a bounded-concurrency stage.
//
//	find . -type f | stagedigest --concurrency 8
//	stagedigest --ordered=false a.bin b.bin
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kbukum/stagekit/config"
	"github.com/kbukum/stagekit/logger"
	"github.com/kbukum/stagekit/version"
)

const serviceName = "stagedigest"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	var (
		configFile  = flags.StringP("config", "c", "", "path to config.yml")
		concurrency = flags.IntP("concurrency", "j", 0, "files hashed at once (overrides stage.max_concurrency)")
		ordered     = flags.Bool("ordered", true, "print digests in input order")
		manifest    = flags.Bool("manifest", false, "print a digest over all digests at the end")
		showVersion = flags.Bool("version", false, "print version and exit")
	)
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(version.Banner(serviceName))
		return 0
	}

	var cfg AppConfig
	opts := []config.LoaderOption{config.WithEnvPrefix("STAGEDIGEST")}
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		return 1
	}
	if *concurrency > 0 {
		cfg.Stage.MaxConcurrency = *concurrency
	}
	if flags.Changed("ordered") {
		cfg.Stage.PreserveOrder = *ordered
	}
	if flags.Changed("manifest") {
		cfg.Digest.Manifest = *manifest
	}

	logger.Init(&cfg.Logging)
	log := logger.WithComponent("main")
	log.Debug("starting", version.Get().Fields())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &digestApp{cfg: cfg, stdin: os.Stdin, stdout: os.Stdout, log: logger.GetGlobalLogger()}
	if err := app.Run(ctx, flags.Args()); err != nil {
		log.Error("digest failed", logger.ErrorFields("run", err))
		return 1
	}
	return 0
}
