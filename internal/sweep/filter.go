package sweep

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadTranscriptList reads transcript identifiers from a whitespace-separated
// file. When a line has more than one column the second column is taken (the
// first is a row index in exported transcript tables); otherwise the whole
// line is the identifier.
func LoadTranscriptList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript list %s: %w", path, err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		switch {
		case len(fields) == 0:
			continue
		case len(fields) >= 2:
			ids = append(ids, fields[1])
		default:
			ids = append(ids, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript list %s: %w", path, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("transcript list %s is empty", path)
	}
	return ids, nil
}

// FilterVCF copies src to dst keeping header lines and records that mention
// any of the given transcript ids. Records are treated as opaque lines; the
// match is a plain substring test, like the grep pipeline it replaces.
func FilterVCF(src, dst string, transcripts []string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	// VCF records routinely exceed bufio's default token size.
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || matchesAny(line, transcripts) {
			if _, err := w.WriteString(line); err != nil {
				return fmt.Errorf("writing %s: %w", dst, err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("writing %s: %w", dst, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", dst, err)
	}
	return nil
}

func matchesAny(line string, transcripts []string) bool {
	for _, t := range transcripts {
		if strings.Contains(line, t) {
			return true
		}
	}
	return false
}
