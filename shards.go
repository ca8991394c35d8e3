package main

import "context"

// loadShards merges the desired shard list from shards.conf with the
// current systemd unit state. Shards listed in the config always appear,
// even when their unit is missing.
func loadShards(ctx context.Context) []shard {
	desired := readDesiredShards()
	running := systemdInstances(ctx, "list-units", "active")
	enabled := systemdInstances(ctx, "list-unit-files", "enabled")

	shards := make([]shard, 0, len(desired))
	for _, name := range desired {
		_, isRunning := running[name]
		_, isEnabled := enabled[name]
		shards = append(shards, shard{name: name, running: isRunning, enabled: isEnabled})
	}
	return shards
}

func findShard(shards []shard, name string) (shard, bool) {
	for _, s := range shards {
		if s.name == name {
			return s, true
		}
	}
	return shard{}, false
}

func shardNames(shards []shard) []string {
	names := make([]string, 0, len(shards))
	for _, s := range shards {
		names = append(names, s.name)
	}
	return names
}
