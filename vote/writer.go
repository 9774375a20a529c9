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

package vote

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/torbw/bwauth/pid"
	"github.com/torbw/bwauth/relay"
)

// WriteVoteFile serializes one round's output: a header line carrying
// the newest scanner timestamp, followed by one line per non-ignored
// relay sorted descending by change (an informational ordering only —
// readers must not rely on it).
func WriteVoteFile(path string, headerTimestamp int64, states []*relay.State) error {
	out := make([]*relay.State, 0, len(states))
	for _, s := range states {
		if !s.Ignore {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Change > out[j].Change })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating vote file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, "%d\n", headerTimestamp); err != nil {
		return err
	}
	for _, s := range out {
		if _, err := fmt.Fprintln(w, formatVoteLine(s)); err != nil {
			return err
		}
	}
	return w.Flush()
}

func formatVoteLine(s *relay.State) string {
	rounded := pid.Base10Round(s.NewBW)
	kdiff := int64(math.Round(s.Change / 1000))
	return fmt.Sprintf(
		"node_id=%s bw=%d diff=%d nick=%s measured_at=%.6f pid_error=%.6f pid_error_sum=%.6f derror_dt=%.6f vote_time=%d",
		s.IDHex, rounded, kdiff, s.Nick, s.ChosenTime, s.PIDError, s.ErrorSum, s.DErrorDt, s.VoteTime,
	)
}
