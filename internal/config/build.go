package config

// Set via -ldflags, for example:
//
//	go build -ldflags "-X web3mail/internal/config.version=1.2.3 \
//	    -X web3mail/internal/config.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// UserAgent is sent on every outbound HTTP request.
func (b BuildInfo) UserAgent() string {
	return "web3mail/" + b.Version + " (" + b.Commit + ")"
}
