package s3blob

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// Two runs with the same cutoff must land on distinct keys. DeleteBefore
// prunes the exported rows right after the upload, so a rerun that reused
// the key would overwrite the earlier batch and lose it for good.
func TestArchivePathUniquePerRun(t *testing.T) {
	cutoff := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	first := archivePath(cutoff, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	second := archivePath(cutoff, time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC))

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "archive/audit/2026-08-30/"))
	assert.True(t, strings.HasPrefix(second, "archive/audit/2026-08-30/"))
	assert.True(t, strings.HasSuffix(first, ".jsonl"))
}

func TestArchivePathNormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	cutoff := time.Date(2026, 8, 31, 2, 0, 0, 0, loc) // 2026-08-30 21:00 UTC
	runAt := time.Date(2026, 8, 31, 3, 0, 0, 0, loc)

	path := archivePath(cutoff, runAt)

	assert.Equal(t, "archive/audit/2026-08-30/20260830T220000Z.jsonl", path)
}

func TestMarshalJSONL(t *testing.T) {
	activity := int64(42)
	entries := []domain.AuditEntry{
		{
			ID:               1,
			Kind:             domain.KindOrder,
			UserID:           7,
			WalletAddress:    "0x1111111111111111111111111111111111111111",
			TargetActivityID: &activity,
			Signature:        "0xdeadbeef",
			Outcome:          domain.OutcomeSuccess,
			AmountUSDC:       100,
			CreatedAt:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:      2,
			Kind:    domain.KindTransfer,
			UserID:  7,
			Outcome: domain.OutcomeRejected,
			Reason:  domain.ReasonCommissionMismatch,
		},
	}

	buf, err := marshalJSONL(entries)
	require.NoError(t, err)

	sc := bufio.NewScanner(bytes.NewReader(buf))
	var lines int
	for sc.Scan() {
		var e domain.AuditEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		assert.Equal(t, entries[lines].ID, e.ID)
		assert.Equal(t, entries[lines].Outcome, e.Outcome)
		lines++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, len(entries), lines)
}
