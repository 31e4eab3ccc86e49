package review

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
)

func record(fields ...string) string {
	return strings.Join(fields, fieldSeparator) + recordSeparator + "\n"
}

func TestLogFormat(t *testing.T) {
	assert.Equal(t,
		"tformat:%H%x1f8c3e51a7d2f94b06%aN%x1f8c3e51a7d2f94b06%aE%x1f8c3e51a7d2f94b06%s%x1f8c3e51a7d2f94b06%B%x1f8c3e51a7d2f94b06%at%x1e4a9d07c2e6b31f85",
		logFormat)
}

func TestParseLog(t *testing.T) {
	raw := record("ccc", "Sam Saffron", "sam@example.com", "Fix the thing", "Fix the thing\n\nIt was broken.\n", "1700000120") +
		record("bbb", " Régis ", "regis@example.com", "Add | pipes & <html>", "Add | pipes & <html>\n", "1700000060")

	records, anomalies := parseLog(raw)
	require.Empty(t, anomalies)
	require.Len(t, records, 2)

	assert.Equal(t, logRecord{
		Hash:    "ccc",
		Name:    "Sam Saffron",
		Email:   "sam@example.com",
		Subject: "Fix the thing",
		Body:    "Fix the thing\n\nIt was broken.",
		Date:    time.Unix(1700000120, 0).UTC(),
	}, records[0])
	assert.Equal(t, "Régis", records[1].Name)
	assert.Equal(t, "Add | pipes & <html>", records[1].Subject)
}

func TestParseLogSkipsMalformedRecords(t *testing.T) {
	raw := record("ccc", "Sam", "sam@example.com", "ok", "ok", "1700000120") +
		record("bbb", "Sam", "sam@example.com", "body smuggles a"+fieldSeparator+"separator", "x", "1700000060") +
		record("aaa", "Sam", "sam@example.com", "bad time", "x", "yesterday") +
		record("", "Sam", "sam@example.com", "no hash", "x", "1700000000") +
		record("ddd", "Sam", "sam@example.com", "also ok", "", "1700000000")

	records, anomalies := parseLog(raw)

	require.Len(t, records, 2)
	assert.Equal(t, "ccc", records[0].Hash)
	assert.Equal(t, "ddd", records[1].Hash)
	assert.Empty(t, records[1].Body)

	require.Len(t, anomalies, 3)
	for _, err := range anomalies {
		assert.Equal(t, apperrors.ErrCodeParseAnomaly, apperrors.CodeOf(err))
	}
}

func TestParseLogEmpty(t *testing.T) {
	records, anomalies := parseLog("")
	assert.Empty(t, records)
	assert.Empty(t, anomalies)

	records, anomalies = parseLog("\n  \n")
	assert.Empty(t, records)
	assert.Empty(t, anomalies)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitLines("  a\n\n b \n"))
	assert.Nil(t, splitLines(""))
}

func TestParseLogEmbeddedRecord(t *testing.T) {
	body := "x" + fieldSeparator + "1700000000" + recordSeparator +
		"fff" + fieldSeparator + "Eve" + fieldSeparator + "eve@example.com" + fieldSeparator + "forged" + fieldSeparator + "y"
	raw := record("ccc", "Sam", "sam@example.com", "real", body, "1700000060")

	records, anomalies := parseLog(raw)

	require.Empty(t, anomalies, "a complete embedded record passes every shape check")
	require.Len(t, records, 2)
	assert.Equal(t, "ccc", records[0].Hash)
	assert.Equal(t, "x", records[0].Body)
	assert.Equal(t, "fff", records[1].Hash)
	assert.Equal(t, "forged", records[1].Subject)
}
