package review

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
)

// Each separator is an ASCII control byte followed by a fixed token. Commit
// text containing a separator usually breaks the field count or the date and
// the record is skipped. A body that embeds a complete well-formed record
// (separators, epoch and hash in order) is parsed as an extra commit.
const (
	fieldToken  = "8c3e51a7d2f94b06"
	recordToken = "4a9d07c2e6b31f85"

	fieldSeparator  = "\x1f" + fieldToken
	recordSeparator = "\x1e" + recordToken
)

// hash, author name, author email, subject, body, author time
var logFields = []string{"%H", "%aN", "%aE", "%s", "%B", "%at"}

// logFormat is the --pretty format producing one separated record per commit
var logFormat = "tformat:" + strings.Join(logFields, "%x1f"+fieldToken) + "%x1e" + recordToken

type logRecord struct {
	Hash    string
	Name    string
	Email   string
	Subject string
	Body    string
	Date    time.Time
}

// parseLog splits raw log output into records. Records that do not have the
// expected shape are returned as anomalies instead of failing the whole batch.
func parseLog(raw string) ([]logRecord, []error) {
	var records []logRecord
	var anomalies []error

	for i, chunk := range strings.Split(raw, recordSeparator) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		fields := strings.Split(chunk, fieldSeparator)
		if len(fields) != len(logFields) {
			anomalies = append(anomalies, apperrors.NewParseAnomalyError(
				fmt.Sprintf("record %d has %d fields, want %d", i, len(fields), len(logFields))))
			continue
		}
		for j := range fields {
			fields[j] = strings.TrimSpace(fields[j])
		}

		if fields[0] == "" {
			anomalies = append(anomalies, apperrors.NewParseAnomalyError(fmt.Sprintf("record %d has no hash", i)))
			continue
		}

		epoch, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil {
			anomalies = append(anomalies, apperrors.NewParseAnomalyError(
				fmt.Sprintf("record %d (%s) has invalid time %q", i, fields[0], fields[5])))
			continue
		}

		records = append(records, logRecord{
			Hash:    fields[0],
			Name:    fields[1],
			Email:   fields[2],
			Subject: fields[3],
			Body:    fields[4],
			Date:    time.Unix(epoch, 0).UTC(),
		})
	}

	return records, anomalies
}

// splitLines returns the non-empty trimmed lines of s
func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
