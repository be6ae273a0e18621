package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/John-Robertt/subfetch/internal/config"
	"github.com/John-Robertt/subfetch/internal/domain"
)

func TestProgressUI_ItemLines(t *testing.T) {
	var buf bytes.Buffer
	ui := newProgressUI(&buf)
	defer ui.Stop()

	ui.OnStart(config.EffectiveConfig{Path: "/v", Provider: "greeksubs", Languages: []language.Tag{domain.Greek}, Concurrency: 2})
	ui.OnPhaseDone("exec", map[string]any{"workers": 2, "total_items": 2}, 0)
	ui.OnItemStart("the-wire_s01e01")
	ui.OnItemDone(1, 2, "the-wire_s01e01", domain.ItemResult{
		Query:      "The Wire S01E01",
		Status:     domain.StatusProcessed,
		Candidates: 3,
		Files: []domain.FileResult{
			{Status: domain.FileStatusWritten},
			{Status: domain.FileStatusExists},
		},
	}, time.Second)
	ui.OnItemDone(2, 2, "heat_1995", domain.ItemResult{
		Query:     "Heat 1995",
		Status:    domain.StatusFailed,
		ErrorCode: domain.ErrCodeFetchFailed,
		ErrorMsg:  "greeksubs 返回 HTTP 503。",
	}, time.Second)

	out := buf.String()
	for _, want := range []string{
		"languages: el",
		"[1/2] The Wire S01E01 OK candidates=3 exists=1 written=1",
		"[2/2] Heat 1995 FAIL fetch_failed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
}

func TestProgressUI_ProgressLineListsActive(t *testing.T) {
	ui := newProgressUI(&bytes.Buffer{})
	ui.startedAt = time.Now()
	ui.total = 3
	ui.OnItemStart("b")
	ui.OnItemStart("a")

	got := ui.progressLineLocked()
	if !strings.Contains(got, "active=2") || !strings.HasSuffix(got, "[a b]") {
		t.Fatalf("进度行不符合预期：%q", got)
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	if got := truncate("Γειασουκοσμε", 6); got != "Γει..." {
		t.Fatalf("期望按字符截断，实际 %q", got)
	}
}
