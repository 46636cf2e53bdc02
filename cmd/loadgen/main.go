// Command loadgen drives host-wide CPU and memory utilization toward
// configured targets and holds them there until interrupted.
//
// Copyright (c) 2024 Javad Rajabzadeh Inc. All rights reserved.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ja7ad/loadgen/pkg/config"
	"github.com/ja7ad/loadgen/pkg/control"
	"github.com/ja7ad/loadgen/pkg/daemon"
	"github.com/ja7ad/loadgen/pkg/display"
	"github.com/ja7ad/loadgen/pkg/probe"
	"github.com/ja7ad/loadgen/pkg/sysutil"
)

type opts struct {
	cpuPct     int
	memPct     float64
	verbose    bool
	loadPath   string
	savePath   string
	saveOnExit bool
	detach     bool
}

func main() {
	var o opts
	var cpuSet, memSet bool

	root := &cobra.Command{
		Use:   "loadgen",
		Short: "Synthetic CPU and memory load generator",
		Long: `loadgen drives host-wide CPU and memory utilization toward
configured targets and holds them there until interrupted. It is used for
stress testing, capacity-planning experiments, scheduler validation, and
infrastructure chaos drills.

Copyright (c) 2024 Javad Rajabzadeh Inc. All rights reserved.

* GitHub: https://github.com/ja7ad/loadgen

Examples:
  loadgen -c 50 -m 60
  loadgen -l cmm.conf -v
  loadgen -c 80 -m 40 -s cmm.conf -d`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o, cpuSet, memSet)
		},
	}

	root.Flags().IntVarP(&o.cpuPct, "cpu", "c", 0, "target CPU percent, 0..100")
	root.Flags().Float64VarP(&o.memPct, "mem", "m", 0, "target memory percent, 0..100")
	root.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose diagnostics on the status renderer")
	root.Flags().StringVarP(&o.loadPath, "load", "l", "", "load config file and treat CPU+mem as set by it")
	root.Flags().StringVarP(&o.savePath, "save", "s", "", "on shutdown, write current effective config to path (default cmm.conf)")
	root.Flags().BoolVarP(&o.detach, "detach", "d", false, "detach from the controlling terminal and run in the background")
	root.Flags().Lookup("save").NoOptDefVal = "cmm.conf"

	root.PreRun = func(cmd *cobra.Command, args []string) {
		cpuSet = cmd.Flags().Changed("cpu")
		memSet = cmd.Flags().Changed("mem")
		o.saveOnExit = cmd.Flags().Changed("save")
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stdout, err)
		os.Exit(1)
	}
}

func run(o opts, cpuSet, memSet bool) error {
	cfg := config.Config{CPUUsagePct: o.cpuPct, MemUsagePct: o.memPct, Verbose: o.verbose}

	if o.loadPath != "" {
		loaded, err := config.Load(o.loadPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if o.verbose {
			cfg.Verbose = true
		}
	} else {
		if !cpuSet {
			return fmt.Errorf("argument error: -c is required unless -l is used")
		}
		if !memSet {
			return fmt.Errorf("argument error: -m is required unless -l is used")
		}
	}

	if cfg.Verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if cfg.CPUUsagePct < 0 || cfg.CPUUsagePct > 100 {
		return fmt.Errorf("argument error: cpu target must be 0..100, got %d", cfg.CPUUsagePct)
	}
	if cfg.MemUsagePct < 0 || cfg.MemUsagePct > 100 {
		return fmt.Errorf("argument error: mem target must be 0..100, got %.2f", cfg.MemUsagePct)
	}

	if o.detach {
		isParent, err := daemon.Detach()
		if err != nil {
			return fmt.Errorf("detach: %w", err)
		}
		if isParent {
			return nil
		}
	}

	p, err := probe.New()
	if err != nil {
		return fmt.Errorf("probe init: %w", err)
	}

	totalMemMB := p.TotalMemMB()
	targetMemMB := sysutil.RoundHalfUp(cfg.MemUsagePct * float64(totalMemMB) / 100)
	slog.Info("starting", "target_cpu_pct", cfg.CPUUsagePct, "target_mem_pct", cfg.MemUsagePct,
		"target_mem_mb", targetMemMB, "cores", p.LogicalCores())

	state := control.NewState()
	workers := control.NewWorkerPool(state, p.LogicalCores(), true)
	cpuReg := control.NewCPURegulator(p, state, float64(cfg.CPUUsagePct))
	memReg := control.NewMemoryRegulator(p, state, cfg.MemUsagePct, totalMemMB, control.DefaultPIDGains().FilterAlpha, nil)
	cpuReg.SetLogger(slog.Default())
	memReg.SetLogger(slog.Default())

	renderer := display.New(os.Stdout, cfg.Verbose, control.DefaultPIDGains(), control.DefaultPIDGains().FilterAlpha)
	sup := control.NewSupervisor(p, state, workers, cpuReg, memReg, renderer, float64(cfg.CPUUsagePct), cfg.MemUsagePct)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		<-sigCh
		sup.Shutdown()
	}()

	sup.Run()

	if o.saveOnExit {
		if err := config.Save(o.savePath, cfg); err != nil {
			slog.Warn("save config failed", "err", err)
		}
	}

	return nil
}
