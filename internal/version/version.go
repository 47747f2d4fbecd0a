package version

// Version is the current version of the argo-backtest engine.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-backtest/internal/version.Version=1.2.3"
// The value "main" indicates a development build.
var Version = "v0.4.0"

// ResultSchemaVersion is the version of the persisted BacktestResult layout.
// Bump the minor version when fields are added and the major version when
// fields are removed or change meaning.
const ResultSchemaVersion = "1.0.0"

// GetVersion returns the current version of the engine.
func GetVersion() string {
	return Version
}
