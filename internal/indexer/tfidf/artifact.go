package tfidf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kk0kc/oip/internal/corpus"
)

// WriteWeights writes "unit idf tfidf" lines with six decimal places.
func WriteWeights(w io.Writer, weights []Weight) error {
	bw := bufio.NewWriter(w)
	for _, wt := range weights {
		if _, err := fmt.Fprintf(bw, "%s %.6f %.6f\n", wt.Unit, wt.IDF, wt.TfIdf); err != nil {
			return fmt.Errorf("writing weight for %q: %w", wt.Unit, err)
		}
	}
	return bw.Flush()
}

// ParseWeights reads an artifact. Lines with fewer than three fields or
// unparsable numbers are skipped and counted.
func ParseWeights(r io.Reader) ([]Weight, int, error) {
	scanner := bufio.NewScanner(r)
	weights := make([]Weight, 0, 128)
	skipped := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			skipped++
			continue
		}
		idfVal, err1 := strconv.ParseFloat(fields[1], 64)
		tfidfVal, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		weights = append(weights, Weight{Unit: fields[0], IDF: idfVal, TfIdf: tfidfVal})
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scanning weights: %w", err)
	}
	return weights, skipped, nil
}

// WriteArtifacts writes both tf-idf files into every document directory of
// layout.
func (m *Model) WriteArtifacts(layout corpus.Layout) error {
	for _, id := range m.DocIDs() {
		dir := layout.DocDir(id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		if err := writeFile(filepath.Join(dir, layout.TermsTfIdfFile), m.termWeights[id]); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, layout.LemmasTfIdfFile), m.lemmaWeights[id]); err != nil {
			return err
		}
	}
	return nil
}

// ReadArtifacts loads the lemma artifact of each id. A missing file yields an
// empty vector for that document. documents is the corpus size.
func ReadArtifacts(layout corpus.Layout, ids []int, documents int) (*Model, int, error) {
	all := make(map[int][]Weight, len(ids))
	skipped := 0
	for _, id := range ids {
		path := filepath.Join(layout.DocDir(id), layout.LemmasTfIdfFile)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				all[id] = nil
				continue
			}
			return nil, skipped, fmt.Errorf("opening %s: %w", path, err)
		}
		ws, n, err := ParseWeights(f)
		f.Close()
		if err != nil {
			return nil, skipped, fmt.Errorf("parsing %s: %w", path, err)
		}
		skipped += n
		all[id] = ws
	}
	return FromWeights(all, documents), skipped, nil
}

func writeFile(path string, weights []Weight) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteWeights(f, weights); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
