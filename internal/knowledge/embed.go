package knowledge

import _ "embed"

//go:embed docs/system.md
var systemDoc string

//go:embed docs/ui.toml
var uiDoc string
