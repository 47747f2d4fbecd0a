package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckSchemaCompatibility checks whether a persisted result written with
// resultSchema can be read by a reader that understands readerSchema.
//
// Compatibility Rules:
//   - "main" on either side skips the check (development builds)
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 1.0.0 reads 1.0.3)
//
// Examples:
//   - Reader 1.0.0, Result 1.0.0 -> OK
//   - Reader 1.0.0, Result 1.0.2 -> OK
//   - Reader 1.0.0, Result 1.1.0 -> ERROR (minor differs)
//   - Reader 1.0.0, Result 2.0.0 -> ERROR (major differs)
func CheckSchemaCompatibility(readerSchema, resultSchema string) error {
	readerSchema = strings.TrimPrefix(readerSchema, "v")
	resultSchema = strings.TrimPrefix(resultSchema, "v")

	if readerSchema == "main" || resultSchema == "main" {
		return nil
	}

	reader, err := semver.NewVersion(readerSchema)
	if err != nil {
		return fmt.Errorf("invalid reader schema version '%s': %w", readerSchema, err)
	}

	result, err := semver.NewVersion(resultSchema)
	if err != nil {
		return fmt.Errorf("invalid result schema version '%s': %w", resultSchema, err)
	}

	if reader.Major() != result.Major() {
		return fmt.Errorf("major schema mismatch: reader understands %d.x.x but result was written as %d.x.x",
			reader.Major(), result.Major())
	}

	if reader.Minor() != result.Minor() {
		return fmt.Errorf("minor schema mismatch: reader understands %d.%d.x but result was written as %d.%d.x",
			reader.Major(), reader.Minor(),
			result.Major(), result.Minor())
	}

	return nil
}

// CheckResultSchema checks a persisted result's schema against ResultSchemaVersion.
func CheckResultSchema(resultSchema string) error {
	return CheckSchemaCompatibility(ResultSchemaVersion, resultSchema)
}
