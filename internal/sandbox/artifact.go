package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"

	"prospect/internal/safeio"
)

// writeArtifact persists the code unit under <root>/<runID>/turn_NNNN.<ext>
// before execution. Run-and-turn-unique naming keeps concurrent runs from
// colliding; the SafeFS guard keeps hostile run IDs inside the root.
func writeArtifact(fsys *safeio.SafeFS, ec ExecContext, unit CodeUnit) (string, error) {
	name := fmt.Sprintf("turn_%04d.%s", ec.Turn, artifactExt(unit.Language))
	path, err := fsys.SafeWriteFile(filepath.Join(ec.RunID, name), unit.Source)
	if err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

func artifactExt(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "javascript", "js":
		return "js"
	case "wasm":
		return "wasm"
	default:
		return "ts"
	}
}
