package metrics

import (
	"testing"
	"time"
)

func TestCollectorRecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpFetchPage, 10*time.Millisecond)
	c.RecordTiming(OpFetchPage, 30*time.Millisecond)
	c.RecordTiming(OpSend, 5*time.Millisecond)

	snap := c.Snapshot()

	if snap.FetchPage == nil {
		t.Fatal("FetchPage snapshot should not be nil")
	}
	if snap.FetchPage.Count != 2 {
		t.Errorf("FetchPage.Count = %d, want 2", snap.FetchPage.Count)
	}
	if snap.FetchPage.MinTimeMs != 10 {
		t.Errorf("FetchPage.MinTimeMs = %d, want 10", snap.FetchPage.MinTimeMs)
	}
	if snap.FetchPage.MaxTimeMs != 30 {
		t.Errorf("FetchPage.MaxTimeMs = %d, want 30", snap.FetchPage.MaxTimeMs)
	}
	if snap.FetchPage.AvgTimeMs != 20 {
		t.Errorf("FetchPage.AvgTimeMs = %f, want 20", snap.FetchPage.AvgTimeMs)
	}

	if snap.Send == nil || snap.Send.Count != 1 {
		t.Error("Send snapshot should report one call")
	}
	if snap.MarkRead != nil {
		t.Error("MarkRead snapshot should be nil with no data")
	}

	if got := c.Count(OpFetchPage); got != 2 {
		t.Errorf("Count(OpFetchPage) = %d, want 2", got)
	}
	if got := c.Count(OpLiveEvent); got != 0 {
		t.Errorf("Count(OpLiveEvent) = %d, want 0", got)
	}
}
