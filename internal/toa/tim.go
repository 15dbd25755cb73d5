// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package toa

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// ErrIncludeCycle indicates a tim file includes itself, directly or not.
var ErrIncludeCycle = errors.New("tim INCLUDE cycle")

// ReadTimFiles reads every tim file in order and returns a table with all
// TOAs selected.
func ReadTimFiles(paths []string) (*Table, error) {
	var all []TOA
	for _, p := range paths {
		toas, err := ReadTim(p)
		if err != nil {
			return nil, err
		}
		all = append(all, toas...)
	}
	return NewTable(all), nil
}

// ReadTim reads a tempo2 (FORMAT 1) tim file, following INCLUDE commands.
func ReadTim(path string) ([]TOA, error) {
	return readTim(path, map[string]bool{})
}

func readTim(path string, visiting map[string]bool) ([]TOA, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if visiting[abs] {
		return nil, fmt.Errorf("%w: %s", ErrIncludeCycle, path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	f, err := os.Open(path) //nolint:gosec // path is provided by caller
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	include := func(name string) ([]TOA, error) {
		if !filepath.IsAbs(name) {
			name = filepath.Join(filepath.Dir(path), name)
		}
		return readTim(name, visiting)
	}

	toas, err := parseTim(f, include)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return toas, nil
}

// ParseTim parses tim data from r. INCLUDE commands are rejected.
func ParseTim(r io.Reader) ([]TOA, error) {
	return parseTim(r, func(name string) ([]TOA, error) {
		return nil, fmt.Errorf("INCLUDE %s: not supported without a file path", name)
	})
}

func parseTim(r io.Reader, include func(string) ([]TOA, error)) ([]TOA, error) {
	var toas []TOA
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || line == "C" || strings.HasPrefix(line, "C ") {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "FORMAT", "MODE", "TIME", "EFAC", "EQUAD", "JUMP", "SKIP", "NOSKIP", "PHASE":
			continue
		case "END":
			return toas, nil
		case "INCLUDE":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: INCLUDE without a file", lineNo)
			}
			inc, err := include(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			toas = append(toas, inc...)
			continue
		}

		t, err := parseTOALine(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		toas = append(toas, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return toas, nil
}

func parseTOALine(fields []string) (TOA, error) {
	if len(fields) < 5 {
		return TOA{}, fmt.Errorf("expected at least 5 columns, got %d", len(fields))
	}
	freq, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return TOA{}, fmt.Errorf("invalid frequency %q", fields[1])
	}
	mjd, err := ParseMJD(fields[2])
	if err != nil {
		return TOA{}, err
	}
	toaErr, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return TOA{}, fmt.Errorf("invalid TOA error %q", fields[3])
	}
	if toaErr <= 0 {
		return TOA{}, fmt.Errorf("TOA error must be positive, got %v", toaErr)
	}

	t := TOA{
		Name:  fields[0],
		Freq:  freq,
		MJD:   mjd,
		Error: toaErr,
		Site:  fields[4],
	}
	rest := fields[5:]
	if len(rest)%2 != 0 {
		return TOA{}, fmt.Errorf("unpaired flag %q", rest[len(rest)-1])
	}
	for i := 0; i < len(rest); i += 2 {
		key := rest[i]
		if !strings.HasPrefix(key, "-") || len(key) < 2 {
			return TOA{}, fmt.Errorf("invalid flag %q", key)
		}
		t.Flags.Set(key[1:], rest[i+1])
	}
	return t, nil
}

// WriteTim writes every TOA of the original table in tempo2 format.
// Cut TOAs are written with their -cut flag so the file can be re-read with
// the same cuts.
func WriteTim(w io.Writer, t *Table, toaType string) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "FORMAT 1"); err != nil {
		return err
	}
	if toaType != "" {
		if _, err := fmt.Fprintf(bw, "C toa-type %s\n", toaType); err != nil {
			return err
		}
	}
	for i := range t.orig {
		if err := writeTOALine(bw, &t.orig[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeTOALine(w io.Writer, t *TOA) error {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(t.Freq, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(t.MJD.String())
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(t.Error, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(t.Site)
	for _, fl := range t.Flags {
		b.WriteString(" -")
		b.WriteString(fl.Key)
		b.WriteByte(' ')
		b.WriteString(fl.Value)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTimFile atomically writes the table to path, creating parent
// directories as needed.
func WriteTimFile(path string, t *Table, toaType string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create tim directory: %w", err)
	}
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending tim file: %w", err)
	}
	defer pendingFile.Cleanup() //nolint:errcheck

	if err := WriteTim(pendingFile, t, toaType); err != nil {
		return fmt.Errorf("write tim data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace tim file: %w", err)
	}
	return nil
}
