package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Path:       "/abs/path",
		DryRun:     true,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Key: "the-wire_s01e02", Status: StatusSkipped},
			{Key: "", Status: StatusFailed}, // config/unmatched 等合成项
			{Key: "the-wire_s01e01", Status: StatusProcessed},
			{Key: "", Status: StatusUnmatched},
			{Key: "lost_s01e01", Status: StatusNotFound},
		},
	}

	r.Finalize()

	got := []string{r.Items[0].Key, r.Items[1].Key, r.Items[2].Key, r.Items[3].Key, r.Items[4].Key}
	want := []string{"lost_s01e01", "the-wire_s01e01", "the-wire_s01e02", "", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items 排序不符合契约：%v", got)
		}
	}
	s := r.Summary
	if s.Processed != 1 || s.Skipped != 1 || s.Failed != 1 || s.Unmatched != 1 || s.NotFound != 1 {
		t.Fatalf("summary 统计不正确：%+v", s)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}
