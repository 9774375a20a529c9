/*
Copyright (c) The bwauth Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scanresult

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gobwas/glob"
	log "github.com/sirupsen/logrus"
)

var scannerDirPattern = regexp.MustCompile(`^scanner\.\d+$`)

// resultFileGlob matches scanner result filenames, "bws-<slice>-done-<ts>".
var resultFileGlob = glob.MustCompile("bws-*-done-*")

// FileRef is one collected scanner result file, still unparsed beyond its
// two-line header.
type FileRef struct {
	SliceID   string
	Timestamp float64
	Path      string
	Scanner   string
}

// Result is the Ingestor's output: every live file reference, the
// newest-timestamp-per-scanner health map, and the newest timestamp seen
// per slice.
type Result struct {
	Files          []FileRef
	ScannerNewest  map[string]float64
	NewestPerSlice map[string]float64
}

// Ingestor walks a set of scanner root directories and collects recent
// per-slice result files.
type Ingestor struct {
	Roots  []string
	MaxAge time.Duration
	Now    func() time.Time
}

// NewIngestor builds an Ingestor with the real wall clock.
func NewIngestor(roots []string, maxAge time.Duration) *Ingestor {
	return &Ingestor{Roots: roots, MaxAge: maxAge, Now: time.Now}
}

// Ingest enumerates scanner.<digits> subdirectories under every root,
// descends into scan-data/, and collects files matching bws-*-done-*
// that are newer than MaxAge.
func (in *Ingestor) Ingest() (*Result, error) {
	res := &Result{
		ScannerNewest:  map[string]float64{},
		NewestPerSlice: map[string]float64{},
	}
	now := in.Now()

	for _, root := range in.Roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			log.Warnf("scanresult: cannot read scanner root %q: %v", root, err)
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !scannerDirPattern.MatchString(entry.Name()) {
				continue
			}
			in.ingestScannerDir(root, entry.Name(), now, res)
		}
	}
	return res, nil
}

func (in *Ingestor) ingestScannerDir(root, scannerName string, now time.Time, res *Result) {
	scanDataDir := filepath.Join(root, scannerName, "scan-data")
	files, err := os.ReadDir(scanDataDir)
	if err != nil {
		log.Debugf("scanresult: no scan-data under %s: %v", scanDataDir, err)
		return
	}

	var newest float64
	for _, f := range files {
		if f.IsDir() || !resultFileGlob.Match(f.Name()) {
			continue
		}
		path := filepath.Join(scanDataDir, f.Name())
		sliceID, timestamp, ok := readHeader(path)
		if !ok {
			continue
		}
		if now.Sub(time.Unix(int64(timestamp), 0)) > in.MaxAge {
			log.Debugf("scanresult: skipping stale file %s", path)
			continue
		}
		res.Files = append(res.Files, FileRef{
			SliceID:   sliceID,
			Timestamp: timestamp,
			Path:      path,
			Scanner:   scannerName,
		})
		if timestamp > newest {
			newest = timestamp
		}
		if cur, ok := res.NewestPerSlice[sliceID]; !ok || timestamp > cur {
			res.NewestPerSlice[sliceID] = timestamp
		}
	}
	res.ScannerNewest[scannerName] = newest
}

// readHeader reads the first two lines of a result file: the slice
// number and the decimal Unix timestamp. Malformed headers are skipped
// with a diagnostic, never fatal.
func readHeader(path string) (sliceID string, timestamp float64, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		log.Warnf("scanresult: cannot open %s: %v", path, err)
		return "", 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		log.Warnf("scanresult: %s missing slice header line", path)
		return "", 0, false
	}
	sliceID = scanner.Text()

	if !scanner.Scan() {
		log.Warnf("scanresult: %s missing timestamp header line", path)
		return "", 0, false
	}
	timestamp, err = strconv.ParseFloat(scanner.Text(), 64)
	if err != nil {
		log.Warnf("scanresult: %s bad timestamp header %q: %v", path, scanner.Text(), err)
		return "", 0, false
	}
	return sliceID, timestamp, true
}

// StaleScanners returns the names of scanners whose newest observed
// timestamp is older than maxScanAge, evaluated as of "now" — the spec
// calls for this check "at serialization time", i.e. when the vote file
// is about to be written, not at ingestion time.
func StaleScanners(scannerNewest map[string]float64, now time.Time, maxScanAge time.Duration) []string {
	var stale []string
	for name, ts := range scannerNewest {
		if now.Sub(time.Unix(int64(ts), 0)) > maxScanAge {
			stale = append(stale, name)
		}
	}
	return stale
}
