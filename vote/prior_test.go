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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPriorVotesMissingFileIsEmptyNotError(t *testing.T) {
	votes, err := ReadPriorVotes(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.Empty(t, votes)
}

func TestReadPriorVotesParsesRequiredAndOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes")
	body := "1700000000\n" +
		"node_id=$AAAA bw=1234 diff=5 nick=relay1 measured_at=1699999000.5 pid_error=0.25 pid_error_sum=0.1 derror_dt=0.01 vote_time=1699999500\n" +
		"node_id=BBBB bw=99 measured_at=1699999000\n" // no optional fields
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	votes, err := ReadPriorVotes(path)
	require.NoError(t, err)
	require.Len(t, votes, 2)

	a := votes["AAAA"]
	require.NotNil(t, a)
	require.Equal(t, 1234.0, a.BW)
	require.Equal(t, 0.25, a.PIDError)
	require.Equal(t, 0.1, a.ErrorSum)
	require.EqualValues(t, 1699999500, a.VoteTime)

	b := votes["BBBB"]
	require.NotNil(t, b)
	require.Equal(t, 0.0, b.PIDError)
	require.Equal(t, 0.0, b.ErrorSum)
	require.EqualValues(t, 0, b.VoteTime)
}

func TestReadPriorVotesSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes")
	body := "1700000000\n" +
		"node_id=AAAA bw=notanumber measured_at=1\n" +
		"nick=noident\n" +
		"node_id=CCCC bw=5 measured_at=2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	votes, err := ReadPriorVotes(path)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	require.Contains(t, votes, "CCCC")
}
