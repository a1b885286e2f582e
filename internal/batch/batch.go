// Package batch runs encryption or decryption over a list of file tasks on a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/saylorsolutions/datalock/internal/config"
	"github.com/saylorsolutions/datalock/internal/fileutil"
	"github.com/saylorsolutions/datalock/pkg/passlock"
)

// Result is the outcome of a single task.
type Result struct {
	Task    config.FileTask
	Size    int64
	Skipped bool
	Err     error
}

// Processor applies a Locker to each task. It's safe to reuse for several Run calls.
type Processor struct {
	cfg    *config.Config
	pass   passlock.Passphrase
	opts   []passlock.LockerOpt
	locker *passlock.Locker
	log    zerolog.Logger
}

// New validates the cipher settings in cfg and prepares a Processor.
// The passphrase isn't copied, the caller zeroes it after Run returns.
func New(cfg *config.Config, pass passlock.Passphrase, log zerolog.Logger) (*Processor, error) {
	if len(pass) == 0 {
		return nil, passlock.ErrEmptyPassPhrase
	}
	opts, err := cfg.LockerOpts()
	if err != nil {
		return nil, err
	}
	locker, err := passlock.NewLocker(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating locker: %w", err)
	}
	return &Processor{
		cfg:    cfg,
		pass:   pass,
		opts:   opts,
		locker: locker,
		log:    log,
	}, nil
}

// Run processes tasks with at most cfg.Parallel running at once.
// A missing source is skipped with a warning. Other task failures don't stop the batch,
// they're joined into the returned error. Cancelling ctx stops new tasks from being scheduled.
func (p *Processor) Run(ctx context.Context, tasks []config.FileTask) (Summary, error) {
	start := time.Now()

	group := errgroup.Group{}
	group.SetLimit(max(1, p.cfg.Parallel))

	results := make(chan Result, len(tasks))
	done := make(chan struct{})

	var (
		summary Summary
		errs    []error
	)

	go func() {
		defer close(done)

		for res := range results {
			log := p.log.With().Str("source", res.Task.Source).Str("destination", res.Task.Destination).Logger()
			switch {
			case res.Skipped:
				summary.Skipped++
				log.Warn().Msg("Source not found, skipping")
			case res.Err != nil:
				summary.Failed++
				errs = append(errs, fmt.Errorf("%s: %w", res.Task.Source, res.Err))
				log.Error().Err(res.Err).Msg("Failed to process file")
			default:
				summary.Processed++
				summary.Bytes += res.Size
				log.Info().Str("size", humanBytes(res.Size)).Msg("Processed file")
			}
		}
	}()

	scheduled := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		scheduled++
		group.Go(func() error {
			results <- p.process(task)
			return nil
		})
	}

	_ = group.Wait()
	close(results)
	<-done

	summary.Duration = time.Since(start)
	if scheduled < len(tasks) {
		summary.Cancelled = len(tasks) - scheduled
		errs = append(errs, fmt.Errorf("%d tasks not started: %w", summary.Cancelled, ctx.Err()))
	}

	return summary, errors.Join(errs...)
}

func (p *Processor) process(task config.FileTask) Result {
	res := Result{Task: task}

	data, err := os.ReadFile(task.Source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			res.Skipped = true
			return res
		}
		res.Err = fmt.Errorf("reading source: %w", err)
		return res
	}

	locker, err := p.lockerFor(task)
	if err != nil {
		res.Err = err
		return res
	}

	var (
		out  []byte
		perm os.FileMode
	)
	if p.cfg.Mode == config.ModeDecrypt {
		out, err = locker.Open(p.pass, data)
		perm = fileutil.OwnerReadWrite
	} else {
		out, err = locker.Seal(p.pass, data)
		perm = fileutil.WorldReadable
	}
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", p.cfg.Mode, err)
		return res
	}

	res.Size, res.Err = fileutil.WriteFile(task.Destination, out, perm)
	return res
}

// lockerFor returns the shared Locker, or one bound to the encrypted file's name when BindName is set.
func (p *Processor) lockerFor(task config.FileTask) (*passlock.Locker, error) {
	if !p.cfg.BindName {
		return p.locker, nil
	}
	name := filepath.Base(task.Destination)
	if p.cfg.Mode == config.ModeDecrypt {
		name = filepath.Base(task.Source)
	}
	opts := append(append([]passlock.LockerOpt(nil), p.opts...), passlock.WithAssociatedData([]byte(name)))
	locker, err := passlock.NewLocker(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating locker: %w", err)
	}
	return locker, nil
}
