// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package timing

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/nanograv/pint-pal/internal/toa"
)

// ReadParFile reads a par file from path.
func ReadParFile(path string) (*Model, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by caller
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	m, err := ReadPar(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadPar parses a tempo-style par file.
func ReadPar(r io.Reader) (*Model, error) {
	m := &Model{
		F0: Param{Name: "F0"},
		F1: Param{Name: "F1"},
		F2: Param{Name: "F2"},
		DM: Param{Name: "DM"},
	}
	dmx := map[int]*DMXRange{}
	var order []int
	getDMX := func(idx int) *DMXRange {
		if r, ok := dmx[idx]; ok {
			return r
		}
		r := &DMXRange{Index: idx, Value: Param{Name: dmxName(idx)}}
		dmx[idx] = r
		order = append(order, idx)
		return r
	}

	var havePEPOCH, haveF0 bool
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "C ") {
			continue
		}
		fields := strings.Fields(line)
		name := strings.ToUpper(fields[0])

		var err error
		switch {
		case name == "PSR" || name == "PSRJ":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: %s without a value", lineNo, name)
			}
			m.PSR = fields[1]
		case name == "PEPOCH":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: PEPOCH without a value", lineNo)
			}
			m.PEPOCH, err = toa.ParseMJD(fields[1])
			havePEPOCH = true
		case name == "F0":
			err = parseParam(&m.F0, fields)
			haveF0 = true
		case name == "F1":
			err = parseParam(&m.F1, fields)
		case name == "F2":
			err = parseParam(&m.F2, fields)
		case name == "DM":
			err = parseParam(&m.DM, fields)
		case strings.HasPrefix(name, "DMX_"), strings.HasPrefix(name, "DMXR1_"), strings.HasPrefix(name, "DMXR2_"),
			strings.HasPrefix(name, "DMXEP_"), strings.HasPrefix(name, "DMXF1_"), strings.HasPrefix(name, "DMXF2_"):
			err = parseDMXLine(name, fields, getDMX)
		case name == "EFAC" || name == "T2EFAC" || name == "EQUAD" || name == "T2EQUAD":
			var n NoiseParam
			n, err = parseNoise(strings.TrimPrefix(name, "T2"), fields)
			m.Noise = append(m.Noise, n)
		default:
			m.Extra = append(m.Extra, line)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !haveF0 || m.F0.Value <= 0 {
		return nil, fmt.Errorf("par file has no positive F0")
	}
	if !havePEPOCH {
		return nil, fmt.Errorf("par file has no PEPOCH")
	}

	for _, idx := range order {
		r := dmx[idx]
		if r.R2 < r.R1 {
			return nil, fmt.Errorf("DMX range %s ends before it starts", r.Label())
		}
		m.DMX = append(m.DMX, *r)
	}
	m.SortDMX()
	return m, nil
}

func parseParam(p *Param, fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("%s without a value", p.Name)
	}
	v, err := parseFloat(fields[1])
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	p.Value = v
	p.Free = false
	p.Uncertainty = 0

	rest := fields[2:]
	if len(rest) > 0 && (rest[0] == "0" || rest[0] == "1") {
		p.Free = rest[0] == "1"
		rest = rest[1:]
	}
	if len(rest) > 0 {
		u, err := parseFloat(rest[0])
		if err != nil {
			return fmt.Errorf("%s uncertainty: %w", p.Name, err)
		}
		p.Uncertainty = u
	}
	return nil
}

// parseFloat accepts Fortran-style exponents ("1.0D-12").
func parseFloat(s string) (float64, error) {
	s = strings.NewReplacer("D", "e", "d", "e").Replace(s)
	return strconv.ParseFloat(s, 64)
}

func parseDMXLine(name string, fields []string, get func(int) *DMXRange) error {
	prefix, label, _ := strings.Cut(name, "_")
	idx, err := strconv.Atoi(label)
	if err != nil || idx <= 0 {
		return fmt.Errorf("invalid DMX index in %s", name)
	}
	r := get(idx)
	if prefix == "DMX" {
		return parseParam(&r.Value, fields)
	}
	if len(fields) < 2 {
		return fmt.Errorf("%s without a value", name)
	}
	v, err := parseFloat(fields[1])
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	switch prefix {
	case "DMXR1":
		r.R1 = v
	case "DMXR2":
		r.R2 = v
	case "DMXEP":
		r.Epoch = v
	case "DMXF1":
		r.F1 = v
	case "DMXF2":
		r.F2 = v
	}
	return nil
}

func parseNoise(kind string, fields []string) (NoiseParam, error) {
	// EFAC -f L-wide_PUPPI 1.05
	if len(fields) < 4 || !strings.HasPrefix(fields[1], "-") {
		return NoiseParam{}, fmt.Errorf("%s needs a flag, a flag value, and a value", kind)
	}
	v, err := parseFloat(fields[3])
	if err != nil {
		return NoiseParam{}, fmt.Errorf("%s: %w", kind, err)
	}
	if v < 0 || (kind == string(EFAC) && v == 0) {
		return NoiseParam{}, fmt.Errorf("%s must be positive, got %v", kind, v)
	}
	return NoiseParam{
		Kind:  NoiseKind(kind),
		Flag:  fields[1][1:],
		Match: fields[2],
		Value: v,
	}, nil
}

// WritePar writes the model as a par file.
func WritePar(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	line := func(format string, args ...any) {
		_, _ = fmt.Fprintf(bw, format+"\n", args...)
	}

	if m.PSR != "" {
		line("%-15s %s", "PSR", m.PSR)
	}
	for _, e := range m.Extra {
		line("%s", e)
	}
	line("%-15s %s", "PEPOCH", m.PEPOCH.String())
	for _, p := range []Param{m.F0, m.F1, m.F2, m.DM} {
		if p.Name == "F0" || p.Value != 0 || p.Free {
			line("%s", formatParam(p))
		}
	}
	for _, n := range m.Noise {
		line("%-15s -%s %s %s", "T2"+string(n.Kind), n.Flag, n.Match, formatFloat(n.Value))
	}
	for _, r := range m.DMX {
		line("%s", formatParam(r.Value))
		line("%-15s %s", "DMXR1_"+r.Label(), formatFloat(r.R1))
		line("%-15s %s", "DMXR2_"+r.Label(), formatFloat(r.R2))
		for _, opt := range []struct {
			prefix string
			v      float64
		}{{"DMXEP_", r.Epoch}, {"DMXF1_", r.F1}, {"DMXF2_", r.F2}} {
			if opt.v != 0 {
				line("%-15s %s", opt.prefix+r.Label(), formatFloat(opt.v))
			}
		}
	}
	return bw.Flush()
}

func formatParam(p Param) string {
	fit := "0"
	if p.Free {
		fit = "1"
	}
	s := fmt.Sprintf("%-15s %s %s", p.Name, formatFloat(p.Value), fit)
	if p.Uncertainty != 0 {
		s += " " + formatFloat(p.Uncertainty)
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteParFile atomically writes the model to path.
func WriteParFile(path string, m *Model) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create par directory: %w", err)
	}
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending par file: %w", err)
	}
	defer pendingFile.Cleanup() //nolint:errcheck

	if err := WritePar(pendingFile, m); err != nil {
		return fmt.Errorf("write par data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace par file: %w", err)
	}
	return nil
}
