package main

import (
	"fmt"

	"github.com/Shopify/go-lua"
)

// validateLuaSource compiles src without executing it. A load error means
// the file would break the game's mod loader on the next boot.
func validateLuaSource(src string) error {
	l := lua.NewState()
	if err := lua.LoadString(l, src); err != nil {
		return fmt.Errorf("lua compile: %w", err)
	}
	l.Pop(1)
	return nil
}

func validateLuaFile(path string) error {
	l := lua.NewState()
	if err := lua.LoadFile(l, path, ""); err != nil {
		return fmt.Errorf("lua compile %s: %w", path, err)
	}
	l.Pop(1)
	return nil
}
