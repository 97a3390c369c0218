package tools

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seqops/sra-pipeline/internal/pipeline"
)

// BarcodeSplitter demultiplexes pooled paired-end FASTQ files into per-cell
// files. The cell barcode is the leading bases of each read-1 sequence;
// reads whose barcode is not in the pool mapping go to the unmatched pair.
type BarcodeSplitter struct {
	splitDir string
	resolver *GSMResolver
	log      *slog.Logger
}

func NewBarcodeSplitter(splitDir string, resolver *GSMResolver, logger *slog.Logger) *BarcodeSplitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BarcodeSplitter{splitDir: splitDir, resolver: resolver, log: logger}
}

func (s *BarcodeSplitter) Split(ctx context.Context, accession string, fastqFiles []string) pipeline.SplitResult {
	r1Path, r2Path, err := pairedFiles(fastqFiles)
	if err != nil {
		return pipeline.SplitResult{Message: err.Error()}
	}

	infoPath, err := s.resolver.FindInfoFile(ctx, accession)
	if err != nil {
		return pipeline.SplitResult{Message: err.Error()}
	}
	mapping, barcodeLen, err := LoadBarcodeMapping(infoPath)
	if err != nil {
		return pipeline.SplitResult{Message: err.Error()}
	}
	s.log.Info("loaded barcode mapping", "accession", accession, "barcodes", len(mapping), "info_file", infoPath)

	if err := os.MkdirAll(s.splitDir, 0o755); err != nil {
		return pipeline.SplitResult{Message: err.Error()}
	}

	outputs, counts, err := s.demux(r1Path, r2Path, mapping, barcodeLen)
	if err != nil {
		return pipeline.SplitResult{Message: err.Error(), Summary: counts}
	}

	s.log.Info("split complete", "accession", accession, "cells", len(counts))
	return pipeline.SplitResult{OK: true, OutputFiles: outputs, Summary: counts}
}

// pairedFiles picks the _1/_2 FASTQ pair out of the converted outputs.
func pairedFiles(files []string) (r1, r2 string, err error) {
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, "_1.fastq"):
			r1 = f
		case strings.HasSuffix(f, "_2.fastq"):
			r2 = f
		}
	}
	if r1 == "" || r2 == "" {
		return "", "", fmt.Errorf("paired-end FASTQ files not found among %d inputs", len(files))
	}
	return r1, r2, nil
}

// LoadBarcodeMapping reads a tab-separated barcode pool file (barcode, cell
// name per line) and returns the mapping plus the uniform barcode length.
func LoadBarcodeMapping(path string) (map[string]string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open barcode info file: %w", err)
	}
	defer f.Close()

	mapping := map[string]string{}
	barcodeLen := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, 0, fmt.Errorf("malformed barcode line %q in %s", line, path)
		}
		barcode, cell := fields[0], fields[1]
		if _, dup := mapping[barcode]; dup {
			return nil, 0, fmt.Errorf("duplicate barcode %s in %s", barcode, path)
		}
		if barcodeLen == 0 {
			barcodeLen = len(barcode)
		} else if len(barcode) != barcodeLen {
			return nil, 0, fmt.Errorf("inconsistent barcode length in %s: %s", path, barcode)
		}
		mapping[barcode] = cell
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	if len(mapping) == 0 {
		return nil, 0, fmt.Errorf("no barcodes found in %s", path)
	}
	return mapping, barcodeLen, nil
}

// pairWriter is the open output pair for one cell.
type pairWriter struct {
	f1, f2 *os.File
	w1, w2 *bufio.Writer
}

func (s *BarcodeSplitter) demux(r1Path, r2Path string, mapping map[string]string, barcodeLen int) ([]string, map[string]int, error) {
	f1, err := os.Open(r1Path)
	if err != nil {
		return nil, nil, err
	}
	defer f1.Close()
	f2, err := os.Open(r2Path)
	if err != nil {
		return nil, nil, err
	}
	defer f2.Close()

	sc1 := newFASTQScanner(f1)
	sc2 := newFASTQScanner(f2)

	writers := map[string]*pairWriter{}
	counts := map[string]int{}
	var outputs []string

	closeAll := func() error {
		var firstErr error
		for _, pw := range writers {
			for _, w := range []*bufio.Writer{pw.w1, pw.w2} {
				if err := w.Flush(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			for _, f := range []*os.File{pw.f1, pw.f2} {
				if err := f.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	}

	for {
		rec1, ok1, err := readRecord(sc1)
		if err != nil {
			_ = closeAll()
			return nil, counts, fmt.Errorf("read %s: %w", r1Path, err)
		}
		rec2, ok2, err := readRecord(sc2)
		if err != nil {
			_ = closeAll()
			return nil, counts, fmt.Errorf("read %s: %w", r2Path, err)
		}
		if ok1 != ok2 {
			_ = closeAll()
			return nil, counts, fmt.Errorf("paired FASTQ files have different record counts")
		}
		if !ok1 {
			break
		}

		cell := "unmatched"
		if len(rec1[1]) >= barcodeLen {
			if name, ok := mapping[rec1[1][:barcodeLen]]; ok {
				cell = name
			}
		}

		pw := writers[cell]
		if pw == nil {
			pw, err = s.openPair(cell)
			if err != nil {
				_ = closeAll()
				return nil, counts, err
			}
			writers[cell] = pw
			outputs = append(outputs, pw.f1.Name(), pw.f2.Name())
		}

		if err := writeRecord(pw.w1, rec1); err == nil {
			err = writeRecord(pw.w2, rec2)
		}
		if err != nil {
			_ = closeAll()
			return nil, counts, err
		}
		counts[cell]++
	}

	if err := closeAll(); err != nil {
		return nil, counts, err
	}
	sort.Strings(outputs)
	return outputs, counts, nil
}

func (s *BarcodeSplitter) openPair(cell string) (*pairWriter, error) {
	f1, err := os.Create(filepath.Join(s.splitDir, cell+"_1.fastq"))
	if err != nil {
		return nil, err
	}
	f2, err := os.Create(filepath.Join(s.splitDir, cell+"_2.fastq"))
	if err != nil {
		_ = f1.Close()
		return nil, err
	}
	return &pairWriter{f1: f1, f2: f2, w1: bufio.NewWriter(f1), w2: bufio.NewWriter(f2)}, nil
}

func newFASTQScanner(f *os.File) *bufio.Scanner {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return sc
}

// readRecord reads one 4-line FASTQ record. ok is false at clean EOF.
func readRecord(sc *bufio.Scanner) (rec [4]string, ok bool, err error) {
	for i := 0; i < 4; i++ {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return rec, false, err
			}
			if i == 0 {
				return rec, false, nil
			}
			return rec, false, fmt.Errorf("truncated FASTQ record")
		}
		rec[i] = sc.Text()
	}
	return rec, true, nil
}

func writeRecord(w *bufio.Writer, rec [4]string) error {
	for _, line := range rec {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}
