package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jeryldev/patingin/internal/ir"
)

// EncodeJSON writes run as indented JSON. Violations keep their order.
func EncodeJSON(w io.Writer, run *ir.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func DecodeJSON(r io.Reader) (*ir.Run, error) {
	var run ir.Run
	if err := json.NewDecoder(r).Decode(&run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

func WriteJSON(runID, outDir string, run *ir.Run) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, runID+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := EncodeJSON(f, run); err != nil {
		return "", err
	}
	return path, nil
}
