// Command protocolschema renders the realtime protocol as a JSON schema so
// client tooling can validate frames against the server's message shapes.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
)

var errSchemaDrift = errors.New("schema is out of date")

func main() {
	outPath := flag.String("out", "-", "schema destination, - for stdout")
	check := flag.Bool("check", false, "fail when the file at -out differs from the generated schema")
	flag.Parse()

	data, err := renderSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "protocolschema: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *check:
		err = checkSchema(*outPath, data)
	case *outPath == "-":
		_, err = os.Stdout.Write(data)
	default:
		err = writeSchema(*outPath, data)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "protocolschema: %v\n", err)
		os.Exit(1)
	}
}

func renderSchema() ([]byte, error) {
	data, err := json.MarshalIndent(proto.BuildSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}

// writeSchema replaces outPath atomically via a sibling temp file.
func writeSchema(outPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), filepath.Base(outPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp schema: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp schema: %w", err)
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}

func checkSchema(path string, want []byte) error {
	if path == "-" {
		return errors.New("-check needs a file path in -out")
	}
	have, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if !bytes.Equal(have, want) {
		return fmt.Errorf("%s: %w", path, errSchemaDrift)
	}
	return nil
}
