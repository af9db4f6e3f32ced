// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/AleutianYard/pkg/fsutil"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// compressedSuffix marks export paths that are zstd-compressed.
const compressedSuffix = ".zst"

// WriteJSON writes v as indented JSON to path, zstd-compressed when path
// ends in ".zst".
func WriteJSON(fs afero.Fs, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if strings.HasSuffix(path, compressedSuffix) {
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		if _, err := enc.Write(data); err != nil {
			_ = enc.Close()
			return fmt.Errorf("compress %s: %w", path, err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("compress %s: %w", path, err)
		}
		data = buf.Bytes()
	}
	return fsutil.WriteFile(fs, path, data)
}

// ReadJSON decodes path into v, decompressing ".zst" files.
func ReadJSON(fs afero.Fs, path string, v any) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, compressedSuffix) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
