package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullLedgerRecordIsNoop(t *testing.T) {
	var l Ledger = NullLedger{}
	err := l.Record(context.Background(), Entry{
		RemoteID:  "127.0.0.1:1234",
		WirePath:  "report.pdf",
		Direction: DirectionUpload,
		Size:      1024,
		Outcome:   OutcomeCommitted,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
}

func TestNullLedgerCloseIsNoop(t *testing.T) {
	var l Ledger = NullLedger{}
	assert.NoError(t, l.Close())
}

func TestEntryDirectionAndOutcomeConstants(t *testing.T) {
	assert.Equal(t, Direction("upload"), DirectionUpload)
	assert.Equal(t, Direction("download"), DirectionDownload)
	assert.Equal(t, Outcome("committed"), OutcomeCommitted)
	assert.Equal(t, Outcome("skipped"), OutcomeSkipped)
	assert.Equal(t, Outcome("failed"), OutcomeFailed)
}
