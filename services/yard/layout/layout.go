// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layout reads, writes and generates yard layout files.
//
// A layout file holds one block per line:
//
//	id,x,y,z,tx,ty,tz
//	id,x,y,z,None
//
// where (x,y,z) is the block's position and (tx,ty,tz) its target, or None
// when it has no goal. VOID is -1,0,-1 and ARRIVAL uses the yard's ARRIVAL
// coordinates; ARRIVAL lines keep queue order.
package layout

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianYard/pkg/fsutil"
	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

var (
	// ErrMalformed indicates a line that is not a valid layout record.
	ErrMalformed = errors.New("malformed layout line")

	// ErrYardFull indicates Generate ran out of free column slots.
	ErrYardFull = errors.New("yard is full")
)

const noTarget = "None"

// Load reads the layout file at path.
func Load(fs afero.Fs, path string) ([]manager.LayoutRecord, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout %s: %w", path, err)
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load layout %s: %w", path, err)
	}
	return records, nil
}

// Parse reads layout records from r. Blank lines and lines starting with
// # are skipped.
func Parse(r io.Reader) ([]manager.LayoutRecord, error) {
	var records []manager.LayoutRecord
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseLine(line string) (manager.LayoutRecord, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 && len(parts) != 7 {
		return manager.LayoutRecord{}, fmt.Errorf("%w: %d fields in %q", ErrMalformed, len(parts), line)
	}
	nums := make([]int, 0, 7)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == 4 && len(parts) == 5 {
			if !strings.EqualFold(p, noTarget) {
				return manager.LayoutRecord{}, fmt.Errorf("%w: expected %s, got %q", ErrMalformed, noTarget, p)
			}
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return manager.LayoutRecord{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, i+1, err)
		}
		nums = append(nums, n)
	}

	rec := manager.LayoutRecord{
		ID:       nums[0],
		Position: model.Position{X: nums[1], Y: nums[2], Z: nums[3]},
	}
	if len(nums) == 7 {
		rec.Target = &model.Position{X: nums[4], Y: nums[5], Z: nums[6]}
	}
	return rec, nil
}

// Format writes records in layout file syntax.
func Format(w io.Writer, records []manager.LayoutRecord) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		target := noTarget
		if r.Target != nil {
			target = fmt.Sprintf("%d,%d,%d", r.Target.X, r.Target.Y, r.Target.Z)
		}
		if _, err := fmt.Fprintf(bw, "%d,%d,%d,%d,%s\n", r.ID, r.Position.X, r.Position.Y, r.Position.Z, target); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save writes the manager's current layout to path.
func Save(fs afero.Fs, path string, m *manager.Manager) error {
	return SaveRecords(fs, path, Export(m))
}

// SaveRecords writes records to path.
func SaveRecords(fs afero.Fs, path string, records []manager.LayoutRecord) error {
	var buf bytes.Buffer
	if err := Format(&buf, records); err != nil {
		return err
	}
	return fsutil.WriteFile(fs, path, buf.Bytes())
}

// Export returns the manager's layout records.
func Export(m *manager.Manager) []manager.LayoutRecord {
	return m.ExportLayout()
}

// GenerateOptions controls random layout generation.
type GenerateOptions struct {
	// Fill is the fraction of column slots to occupy.
	Fill float64 `json:"fill" yaml:"fill" validate:"gte=0,lte=1"`

	// TargetProbability is the chance each placed block is VOID-bound.
	TargetProbability float64 `json:"target_probability" yaml:"target_probability" validate:"gte=0,lte=1"`

	// Arrivals is the number of blocks enqueued at ARRIVAL.
	Arrivals int `json:"arrivals" yaml:"arrivals" validate:"gte=0"`
}

// DefaultGenerateOptions returns 80% fill, even goal odds and five arrivals.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Fill: 0.8, TargetProbability: 0.5, Arrivals: 5}
}

// Generate fills random free column slots of m's yard, one block per draw,
// then enqueues arrivals. Ids continue from the largest id present.
//
// Outputs:
//
//	error - A validation error for bad options, ErrYardFull when the yard
//	        cannot take the requested fill.
func Generate(rng *rand.Rand, m *manager.Manager, opts GenerateOptions) error {
	if err := validator.New().Struct(opts); err != nil {
		return fmt.Errorf("invalid generate options: %w", err)
	}
	y := m.Yard()
	count := int(float64(y.TotalPositions()) * opts.Fill)

	for i := 0; i < count; i++ {
		slots := columnSlots(y)
		if len(slots) == 0 {
			return fmt.Errorf("%w after %d of %d blocks", ErrYardFull, i, count)
		}
		slot := slots[rng.IntN(len(slots))]
		rec := manager.LayoutRecord{ID: m.NextBlockID(), Position: slot}
		if rng.Float64() < opts.TargetProbability {
			v := model.Void
			rec.Target = &v
		}
		if err := m.LoadInitialLayout([]manager.LayoutRecord{rec}); err != nil {
			return err
		}
	}
	for i := 0; i < opts.Arrivals; i++ {
		if err := m.AddArrival(model.NewBlock(m.NextBlockID())); err != nil {
			return err
		}
	}
	return nil
}

func columnSlots(y *model.Yard) []model.Position {
	free := y.FreePositions()
	out := free[:0]
	for _, p := range free {
		if !p.IsVoid() {
			out = append(out, p)
		}
	}
	return out
}
