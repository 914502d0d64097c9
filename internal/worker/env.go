package worker

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"web3mail/internal/config"
	"web3mail/internal/types"
	"web3mail/internal/validation"
)

// Dataset locates one protected data handed to the task. Index is 0 in single
// mode and 1..N in bulk mode.
type Dataset struct {
	Index    int
	Path     string
	Address  string
	Filename string
}

// WorkerConfig is the typed, validated view of the task environment.
type WorkerConfig struct {
	InputDir  string
	OutputDir string

	Developer types.AppDeveloperSecret
	Requester types.RequesterSecret

	BulkSliceSize int
	Datasets      []Dataset

	IPFSGateway        string
	PocoSubgraphURL    string
	MailjetURL         string
	MailgunURL         string
	EmailSendRateLimit float64
	StubMode           bool
}

// IsBulk reports whether the task processes a slice of protected data.
func (c *WorkerConfig) IsBulk() bool {
	return c.BulkSliceSize > 0
}

// ParseConfig turns the raw environment into a WorkerConfig. Any error here is
// fatal: the task must stop before writing output.
func ParseConfig(raw *config.RawEnvironment, v *validation.Validator) (*WorkerConfig, error) {
	if raw == nil {
		return nil, &config.ConfigError{Type: config.ErrValidation, Message: "missing worker environment"}
	}
	if strings.TrimSpace(raw.OutputDir) == "" {
		return nil, &config.ConfigError{Type: config.ErrValidation, Message: "IEXEC_OUT is required"}
	}
	if raw.BulkSliceSize < 0 {
		return nil, &config.ConfigError{Type: config.ErrValidation, Message: "IEXEC_BULK_SLICE_SIZE must not be negative"}
	}

	cfg := &WorkerConfig{
		InputDir:           raw.InputDir,
		OutputDir:          raw.OutputDir,
		BulkSliceSize:      raw.BulkSliceSize,
		IPFSGateway:        raw.IPFSGateway,
		PocoSubgraphURL:    raw.PocoSubgraphURL,
		MailjetURL:         raw.MailjetURL,
		MailgunURL:         raw.MailgunURL,
		EmailSendRateLimit: raw.EmailSendRateLimit,
		StubMode:           raw.StubMode,
	}

	if err := decodeSecret("IEXEC_APP_DEVELOPER_SECRET", raw.AppDeveloperSecret, &cfg.Developer); err != nil {
		return nil, err
	}
	if err := decodeSecret("IEXEC_REQUESTER_SECRET_1", raw.RequesterSecret, &cfg.Requester); err != nil {
		return nil, err
	}
	if err := v.Struct(cfg.Developer); err != nil {
		return nil, &config.ConfigError{Type: config.ErrValidation, Message: "invalid app developer secret", Err: err}
	}
	if err := v.Struct(cfg.Requester); err != nil {
		return nil, &config.ConfigError{Type: config.ErrValidation, Message: "invalid requester secret", Err: err}
	}

	for i, app := range cfg.Developer.WhitelistedApps {
		cfg.Developer.WhitelistedApps[i] = strings.ToLower(app)
	}
	cfg.Datasets = datasets(raw)
	return cfg, nil
}

func decodeSecret(name, value string, out any) error {
	if strings.TrimSpace(value) == "" {
		return &config.ConfigError{Type: config.ErrParsing, Message: name + " is required"}
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return &config.ConfigError{Type: config.ErrParsing, Message: fmt.Sprintf("%s is not valid JSON", name), Err: err}
	}
	return nil
}

// datasets lists the protected data of the task. Missing entries are kept so
// that each one reports its own failure.
func datasets(raw *config.RawEnvironment) []Dataset {
	if raw.BulkSliceSize == 0 {
		return []Dataset{newDataset(raw.InputDir, 0, raw.DatasetFilename, raw.DatasetAddress)}
	}
	out := make([]Dataset, 0, raw.BulkSliceSize)
	for i := 1; i <= raw.BulkSliceSize; i++ {
		d := raw.Datasets[i]
		out = append(out, newDataset(raw.InputDir, i, d.Filename, d.Address))
	}
	return out
}

func newDataset(inputDir string, index int, filename, address string) Dataset {
	d := Dataset{
		Index:    index,
		Address:  strings.ToLower(address),
		Filename: filename,
	}
	if filename != "" {
		d.Path = filepath.Join(inputDir, filename)
	}
	return d
}
