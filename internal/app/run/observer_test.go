package run

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/subfetch/internal/config"
	"github.com/John-Robertt/subfetch/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	phases     []string
	started    []string
	items      []string
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnItemStart(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, key)
}

func (o *recordObserver) OnItemDone(idx, total int, key string, res domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, key)
}

func TestExecuteWithObserver_EmitsPhaseAndItemEvents(t *testing.T) {
	root, reg := setup(t, wireSite(t))

	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), effConfig(root, false), reg, obs, nil)

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}

	wantPhases := []string{"scan", "group", "plan", "exec"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if len(obs.items) != 1 || obs.items[0] != "the-wire_s01e01" {
		t.Fatalf("条目事件不符合预期：items=%v", obs.items)
	}
	if !reflect.DeepEqual(obs.started, obs.items) {
		t.Fatalf("OnItemStart 与 OnItemDone 应成对：started=%v done=%v", obs.started, obs.items)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	root, reg := setup(t, wireSite(t))
	cfg := effConfig(root, false)

	a := Execute(context.Background(), cfg, reg)
	b := ExecuteWithObserver(context.Background(), cfg, reg, nil, nil)

	// 时间字段本身允许有微小差异；对比时归零。
	a.StartedAt, a.FinishedAt = time.Time{}, time.Time{}
	b.StartedAt, b.FinishedAt = time.Time{}, time.Time{}

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
