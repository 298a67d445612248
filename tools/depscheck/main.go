package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "github.com/otaviokmkm/Drakantos-Inspired-MMORPG"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under From from importing anything under one of
// Forbidden. Paths are relative to the module root; "" is the root package.
type rule struct {
	From      string
	Forbidden []string
}

var rules = []rule{
	// The wire protocol is shared with the client and stays free of server state.
	{From: "internal/net/proto", Forbidden: []string{"", "internal/world", "internal/sim", "internal/storage"}},
	// The client engine speaks the protocol only.
	{From: "client", Forbidden: []string{"", "internal/sim", "internal/net/ws", "internal/net/intake", "internal/storage", "internal/app"}},
	// Simulation code sees the storage contract, never a concrete backend.
	{From: "internal/world", Forbidden: []string{"", "internal/net", "internal/storage/sqlite", "internal/app"}},
	{From: "internal/sim", Forbidden: []string{"", "internal/net", "internal/storage/sqlite"}},
	{From: "stats", Forbidden: []string{"", "internal", "logging"}},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	pkgs, err := decodePackages(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if violations := check(pkgs, rules); len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(output []byte) ([]packageInfo, error) {
	decoder := json.NewDecoder(bytes.NewReader(output))
	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return pkgs, nil
			}
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
}

func check(pkgs []packageInfo, rules []rule) []string {
	var violations []string
	for _, pkg := range pkgs {
		for _, r := range rules {
			if !within(pkg.ImportPath, r.From) {
				continue
			}
			for _, imp := range pkg.Imports {
				for _, forbidden := range r.Forbidden {
					if within(imp, forbidden) {
						violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					}
				}
			}
		}
	}
	sort.Strings(violations)
	return violations
}

// within reports whether importPath is the package at rel or below it. The
// empty rel matches the root package only.
func within(importPath, rel string) bool {
	if rel == "" {
		return importPath == modulePath
	}
	prefix := modulePath + "/" + rel
	return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
}
