// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/loomworks/loom/internal/adapters/cache"
	_ "github.com/loomworks/loom/internal/adapters/config"
	_ "github.com/loomworks/loom/internal/adapters/logger"
	_ "github.com/loomworks/loom/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "github.com/loomworks/loom/internal/app"
	_ "github.com/loomworks/loom/internal/engine/fingerprint"
	_ "github.com/loomworks/loom/internal/engine/scheduler"
)
