// gan-train: runs an adversarial training schedule from a YAML experiment file.
//
// Usage:
//
//	gan-train --config=configs/gan_config.yaml --rounds=500 --mode=unrolled --unroll=5
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"gan_lib/config"
	"gan_lib/dashboard"
	"gan_lib/gan"
	"gan_lib/tensor"
	"gan_lib/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	configPath  = flag.String("config", "configs/gan_config.yaml", "Experiment YAML file")
	rounds      = flag.Int("rounds", 200, "Number of training rounds")
	mode        = flag.String("mode", "batch", "Schedule: batch, unrolled, equilibrium")
	unroll      = flag.Int("unroll", gan.DefaultUnrollSteps, "Discriminator look-ahead steps for --mode=unrolled")
	temperature = flag.Float64("temperature", gan.DefaultTemperature, "Acceptance temperature for --mode=equilibrium")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	verbose     = flag.Bool("verbose", true, "Print timing statistics")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	log.SetLevel(level)

	if err := run(log); err != nil {
		log.WithError(err).Error("training failed")
		os.Exit(1)
	}
}

func run(log *logrus.Logger) error {
	ctx := context.Background()
	totalStart := time.Now()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	schedule := *mode
	if cfg.GANType() == config.Equilibrium {
		schedule = "equilibrium"
	}
	switch schedule {
	case "batch", "unrolled", "equilibrium":
	default:
		return errors.Errorf("unknown mode %q", schedule)
	}
	if *rounds <= 0 {
		return errors.Errorf("rounds must be positive, got %d", *rounds)
	}

	opts, err := dashboard.ParseOptions(cfg.Dashboard)
	if err != nil {
		return err
	}
	store, err := dashboard.NewStore(opts.Store, opts.DBPath)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return errors.Wrap(err, "init dashboard store")
	}
	defer func() {
		if err := dashboard.CloseIfSupported(store); err != nil {
			log.WithError(err).Warn("close dashboard store")
		}
	}()

	stats := &utils.TimingStats{}
	trainer, err := gan.NewTrainer(cfg, gan.WithLogger(log), gan.WithTimings(stats))
	if err != nil {
		return err
	}
	recorder, err := dashboard.NewRecorder(ctx, store, dashboard.RunInfo{
		ID:      opts.RunID,
		GANType: cfg.GANType().String(),
		Mode:    schedule,
		Seed:    cfg.Model.Seed,
	}, opts.HistogramBins, log)
	if err != nil {
		return err
	}

	// telemetry draws its own noise
	previewSeed := cfg.Model.Seed + 1
	if cfg.Model.Seed == 0 {
		previewSeed = time.Now().UnixNano()
	}
	preview := rand.New(rand.NewSource(previewSeed))

	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Config:    %s\n", *configPath)
	fmt.Printf("  GAN type:  %s\n", cfg.GANType())
	fmt.Printf("  Target:    %s\n", cfg.Target())
	fmt.Printf("  Schedule:  %s\n", schedule)
	fmt.Printf("  Rounds:    %d\n", *rounds)
	fmt.Printf("  Run id:    %s\n", recorder.RunID())
	fmt.Println()

	for r := 1; r <= *rounds; r++ {
		rec, err := step(trainer, schedule)
		if err != nil {
			return errors.WithMessagef(err, "round %d", r)
		}
		samples, err := trainer.Preview(preview, opts.SampleSize)
		if err != nil {
			return err
		}
		if err := record(ctx, recorder, rec, samples, stats); err != nil {
			return err
		}
		if r%50 == 0 || r == *rounds {
			log.WithFields(logrus.Fields{
				"round":  r,
				"d_loss": rec.DiscriminatorLoss,
				"g_loss": rec.GeneratorLoss,
			}).Info("progress")
		}
	}

	stats.TotalTime = time.Since(totalStart)
	fmt.Printf("\nTraining complete! Total time: %.2fs\n", stats.TotalTime.Seconds())
	utils.PrintTimingStats(stats, *rounds)
	return nil
}

// step runs one round of the selected schedule and reports its losses.
func step(t *gan.Trainer, schedule string) (dashboard.RoundRecord, error) {
	rec := dashboard.RoundRecord{Mode: schedule}
	switch schedule {
	case "equilibrium":
		res, err := t.TrainEquilibriumRound(*temperature)
		if err != nil {
			return rec, err
		}
		rec.DiscriminatorLoss = res.Error
		rec.Generation = res.Generation
		rec.Accepted = res.Accepted
		return rec, nil
	case "unrolled":
		res, err := t.TrainOneBatchUnrolled(*unroll)
		if err != nil {
			return rec, err
		}
		rec.GeneratorLoss, rec.DiscriminatorLoss = res.GeneratorLoss, res.DiscriminatorLoss
	default:
		res, err := t.TrainOneBatch()
		if err != nil {
			return rec, err
		}
		rec.GeneratorLoss, rec.DiscriminatorLoss = res.GeneratorLoss, res.DiscriminatorLoss
	}
	return rec, nil
}

func record(ctx context.Context, r *dashboard.Recorder, rec dashboard.RoundRecord, samples *tensor.Tensor, stats *utils.TimingStats) error {
	start := time.Now()
	defer func() { stats.RecordTime += time.Since(start) }()
	_, err := r.Record(ctx, rec, samples)
	return err
}
