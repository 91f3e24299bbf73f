package stage

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// IndexNotOlderThan returns a check that the index file's mtime is not older
// than the file it indexes. A stale index means the sort/index step was
// skipped or interrupted after the alignment was rewritten.
func IndexNotOlderThan(index, target string) func() error {
	return func() error {
		idx, err := os.Stat(index)
		if err != nil {
			return fmt.Errorf("stat index: %w", err)
		}
		tgt, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("stat indexed file: %w", err)
		}
		if idx.ModTime().Before(tgt.ModTime()) {
			return fmt.Errorf("index %s is older than %s", index, target)
		}
		return nil
	}
}

// FastqHasRecord returns a check that the file contains at least one
// complete FASTQ record (header, sequence, separator, quality).
func FastqHasRecord(path string) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		var lines int
		for sc.Scan() && lines < 4 {
			line := sc.Text()
			if lines == 0 && !strings.HasPrefix(line, "@") {
				return fmt.Errorf("first line is not a FASTQ header")
			}
			lines++
		}
		if err := sc.Err(); err != nil {
			return err
		}
		if lines < 4 {
			return fmt.Errorf("no complete FASTQ record (got %d lines)", lines)
		}
		return nil
	}
}

// TableHasRows returns a check that a delimited text table has a header line
// plus at least minRows data rows.
func TableHasRows(path string, minRows int) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		var lines int
		for sc.Scan() && lines <= minRows {
			lines++
		}
		if err := sc.Err(); err != nil {
			return err
		}
		if lines == 0 {
			return fmt.Errorf("table has no header line")
		}
		if lines-1 < minRows {
			return fmt.Errorf("table has %d data rows, want at least %d", lines-1, minRows)
		}
		return nil
	}
}

// CSVHasColumn returns a check that the first line of a comma-separated file
// names the given column.
func CSVHasColumn(path, column string) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}
			return fmt.Errorf("file has no header line")
		}
		for _, field := range strings.Split(sc.Text(), ",") {
			if strings.TrimSpace(field) == column {
				return nil
			}
		}
		return fmt.Errorf("header lacks column %q", column)
	}
}
