package sandbox

import _ "embed"

//go:embed assets/runskill.ts
var runnerSource []byte

//go:embed assets/package.json
var runnerPackageJSON []byte
