package config

import (
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// RawEnvironment is everything the worker reads from its environment. It is
// unvalidated; the worker turns it into a typed configuration in one place.
type RawEnvironment struct {
	InputDir           string `envconfig:"IEXEC_IN"`
	OutputDir          string `envconfig:"IEXEC_OUT"`
	AppDeveloperSecret string `envconfig:"IEXEC_APP_DEVELOPER_SECRET"`
	RequesterSecret    string `envconfig:"IEXEC_REQUESTER_SECRET_1"`
	DatasetFilename    string `envconfig:"IEXEC_DATASET_FILENAME"`
	DatasetAddress     string `envconfig:"IEXEC_DATASET_ADDRESS"`
	BulkSliceSize      int    `envconfig:"IEXEC_BULK_SLICE_SIZE" default:"0"`

	IPFSGateway     string `envconfig:"IPFS_GATEWAY" default:"https://ipfs-gateway.v8-bellecour.iex.ec"`
	PocoSubgraphURL string `envconfig:"POCO_SUBGRAPH_URL" default:"https://thegraph.bellecour.iex.ec/subgraphs/name/bellecour/poco-v5"`
	MailjetURL      string `envconfig:"MAILJET_API_URL"`
	MailgunURL      string `envconfig:"MAILGUN_API_URL"`

	// EmailSendRateLimit caps sends per second in bulk mode; 0 disables it.
	EmailSendRateLimit float64 `envconfig:"EMAIL_SEND_RATE_LIMIT" default:"0"`
	StubMode           bool    `envconfig:"WORKER_STUB_MODE" default:"false"`
	LogLevel           string  `envconfig:"LOG_LEVEL" default:"info"`

	// Datasets holds IEXEC_DATASET_<n>_FILENAME / _ADDRESS pairs keyed by n.
	Datasets map[int]DatasetEnv `ignored:"true"`
}

// DatasetEnv locates one protected data of a bulk slice.
type DatasetEnv struct {
	Filename string
	Address  string
}

var datasetVar = regexp.MustCompile(`^IEXEC_DATASET_([0-9]+)_(FILENAME|ADDRESS)=(.*)$`)

type loaderDeps struct {
	environ func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{environ: os.Environ}
}

// LoadRawEnvironment reads the worker environment. A .env file in the working
// directory is loaded first when present.
func LoadRawEnvironment() (*RawEnvironment, error) {
	return loadRawEnvironmentWithDeps(defaultDeps())
}

func loadRawEnvironmentWithDeps(deps loaderDeps) (*RawEnvironment, error) {
	_ = godotenv.Load()

	var env RawEnvironment
	if err := envconfig.Process("", &env); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process worker environment",
			Err:     err,
		}
	}

	env.Datasets = scanDatasets(deps.environ())
	return &env, nil
}

func scanDatasets(entries []string) map[int]DatasetEnv {
	datasets := make(map[int]DatasetEnv)
	for _, entry := range entries {
		m := datasetVar.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		d := datasets[n]
		if m[2] == "FILENAME" {
			d.Filename = m[3]
		} else {
			d.Address = m[3]
		}
		datasets[n] = d
	}
	return datasets
}
