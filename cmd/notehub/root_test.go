package main

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "add", "list", "remove", "pages", "watch"}
	for _, name := range want {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
}

func TestPersistentFlagsRegistered(t *testing.T) {
	for _, name := range []string{"verbose", "server", "config"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Fatalf("persistent flag %q not registered", name)
		}
	}
}
