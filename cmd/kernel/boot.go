package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	apimachinerywait "k8s.io/apimachinery/pkg/util/wait"

	"github.com/eduos/kernel/internal/debugapi"
	"github.com/eduos/kernel/internal/kernel"
)

func newLogger() (logr.Logger, error) {
	var zapCfg zap.Config
	if verboseLog {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("kernel: building logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// readAccountFile returns a file's contents, or "" if dir is empty or
// the file doesn't exist: accounts are an optional feature, absence
// just means SysLogin always fails rather than boot failing.
func readAccountFile(dir, name string) (string, error) {
	if dir == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	return string(data), err
}

func runBoot(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	passwdData, err := readAccountFile(accountsDir, "passwd")
	if err != nil {
		return fmt.Errorf("kernel: reading passwd: %w", err)
	}
	groupData, err := readAccountFile(accountsDir, "group")
	if err != nil {
		return fmt.Errorf("kernel: reading group: %w", err)
	}
	shadowData, err := readAccountFile(accountsDir, "shadow")
	if err != nil {
		return fmt.Errorf("kernel: reading shadow: %w", err)
	}

	cfg := kernel.Config{
		DMAFrames:       dmaFrames,
		NormalFrames:    normalFrames,
		HighFrames:      highFrames,
		MaxProcesses:    maxProcesses,
		Policy:          schedPolicy,
		DiskPath:        diskPath,
		PasswdData:      passwdData,
		GroupData:       groupData,
		ShadowData:      shadowData,
		TickInterval:    tickInterval,
		DebugListenAddr: debugListenAddr,
	}

	k, err := kernel.New(cfg, log)
	if err != nil {
		return fmt.Errorf("kernel: boot failed: %w", err)
	}
	defer func() {
		if err := k.Close(); err != nil {
			log.Error(err, "kernel: shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Timer IRQ: advances the scheduler's tick counter on a fixed
	// period, waking WaitPeriod callers each time.
	g.Go(func() error {
		return apimachinerywait.PollUntilContextCancel(gctx, cfg.TickInterval, true, func(context.Context) (bool, error) {
			k.Sched.Tick()
			return false, nil
		})
	})

	// Device IRQ simulator: periodically gives the scheduler a chance to
	// reschedule off the back of simulated disk completion, the way a
	// real ATA interrupt handler would signal command completion.
	g.Go(func() error {
		return apimachinerywait.PollUntilContextCancel(gctx, cfg.TickInterval*4, true, func(context.Context) (bool, error) {
			k.Sched.Resched()
			return false, nil
		})
	})

	if cfg.DebugListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.DebugListenAddr)
		if err != nil {
			return fmt.Errorf("kernel: debugapi listen: %w", err)
		}
		gs := grpc.NewServer()
		debugapi.RegisterDebugServiceServer(gs, debugapi.NewServer(k))

		g.Go(func() error {
			log.Info("debugapi listening", "address", cfg.DebugListenAddr)
			return gs.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	log.Info("kernel booted", "policy", cfg.Policy, "tick-interval", cfg.TickInterval)
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	log.Info("kernel shutting down")
	return nil
}
