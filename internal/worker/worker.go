// Package worker is the confidential task that runs inside the enclave. It
// reads the protected email of each dataset, makes sure the address can be
// trusted, decrypts the requester's content and sends it, then writes the
// result document and computed.json for the settlement callback.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"web3mail/internal/external"
	"web3mail/internal/types"
	"web3mail/internal/validation"
)

// Outcome summarizes a finished run.
type Outcome struct {
	Success    bool
	ResultPath string
}

// Worker runs the task pipeline over the datasets of one task.
type Worker struct {
	cfg      *WorkerConfig
	clients  *external.ClientRegistry
	validate *validation.Validator
	logger   *slog.Logger
	limiter  *rate.Limiter
	content  func() (string, error)
}

// New creates a Worker. The email content is downloaded at most once per run.
func New(ctx context.Context, cfg *WorkerConfig, clients *external.ClientRegistry, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		cfg:      cfg,
		clients:  clients,
		validate: validation.New(logger),
		logger:   logger,
	}
	if cfg.EmailSendRateLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.EmailSendRateLimit), 1)
	}
	w.content = sync.OnceValues(func() (string, error) {
		return fetchContent(ctx, clients.Content, cfg.Requester)
	})
	return w
}

// Run processes every dataset and writes the output files. The returned error
// is set only when the outputs could not be written.
func (w *Worker) Run(ctx context.Context) (*Outcome, error) {
	if w.cfg.IsBulk() {
		return w.runBulk(ctx)
	}
	return w.runSingle(ctx)
}

func (w *Worker) runSingle(ctx context.Context) (*Outcome, error) {
	out := w.process(ctx, w.cfg.Datasets[0])

	var callback string
	if w.cfg.Requester.UseCallback {
		callback = encodeCallback(out.check)
	}
	path, err := writeOutputs(w.cfg.OutputDir, out.result, callback)
	if err != nil {
		return nil, err
	}
	w.logger.Info("task finished", "success", out.result.Success)
	return &Outcome{Success: out.result.Success, ResultPath: path}, nil
}

// runBulk processes each dataset concurrently. Items are isolated: a failed
// item is recorded in its own result and never cancels the others.
func (w *Worker) runBulk(ctx context.Context) (*Outcome, error) {
	results := make([]types.BulkItemResult, len(w.cfg.Datasets))

	var g errgroup.Group
	for i, d := range w.cfg.Datasets {
		g.Go(func() error {
			out := w.process(ctx, d)
			results[i] = types.BulkItemResult{Index: d.Index, TaskResult: out.result}
			return nil
		})
	}
	_ = g.Wait()

	agg := types.BulkTaskResult{
		TotalCount: len(results),
		Results:    results,
	}
	for _, r := range results {
		if r.Success {
			agg.SuccessCount++
		} else {
			agg.ErrorCount++
		}
	}
	agg.Success = agg.ErrorCount == 0

	path, err := writeOutputs(w.cfg.OutputDir, agg, "")
	if err != nil {
		return nil, err
	}
	w.logger.Info("bulk task finished",
		"total", agg.TotalCount,
		"succeeded", agg.SuccessCount,
		"failed", agg.ErrorCount,
	)
	return &Outcome{Success: agg.Success, ResultPath: path}, nil
}

// RegistryConfig derives the external client configuration from cfg.
func RegistryConfig(cfg *WorkerConfig, userAgent string) external.RegistryConfig {
	return external.RegistryConfig{
		StubMode:             cfg.StubMode,
		UserAgent:            userAgent,
		MailjetAPIKeyPublic:  cfg.Developer.MailjetAPIKeyPublic,
		MailjetAPIKeyPrivate: cfg.Developer.MailjetAPIKeyPrivate,
		MailjetURL:           cfg.MailjetURL,
		MailgunAPIKey:        cfg.Developer.MailgunAPIKey,
		MailgunURL:           cfg.MailgunURL,
		IPFSGateway:          cfg.IPFSGateway,
		SubgraphURL:          cfg.PocoSubgraphURL,
	}
}
