package main

import "context"

// plugin is a compile-time registered extension. The coordinator starts
// each plugin once, calls update on every tick and stops them on the way
// out. The registry replaces runtime discovery of loadable modules.
type plugin interface {
	name() string
	start(ctx context.Context, app *appContext) error
	update(ctx context.Context)
	stop()
}

// registeredPlugins lists every plugin compiled into the binary.
func registeredPlugins() []plugin {
	return []plugin{
		newDiscordPlugin(),
	}
}
