package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if store.Len() != 0 {
		t.Errorf("New store should be empty, got %d reports", store.Len())
	}
}

func TestSourceKey(t *testing.T) {
	a := SourceKey("/data/metrics.csv")
	if len(a) != 64 {
		t.Errorf("SourceKey() length = %d, want 64", len(a))
	}
	if a != SourceKey("/data/metrics.csv") {
		t.Error("SourceKey() is not deterministic")
	}
	if a == SourceKey("/data/metrics2.csv") {
		t.Error("SourceKey() collided for different sources")
	}
}

func TestMemoryStore_Put_Get(t *testing.T) {
	tests := []struct {
		name    string
		report  Report
		wantErr bool
	}{
		{
			name: "valid report",
			report: Report{
				ID:          "r-1",
				Source:      "/data/metrics.csv",
				Mode:        "fuzzy",
				Scorer:      "iforest",
				GeneratedAt: time.Now(),
				Rows:        10,
				Anomalies:   2,
				MinScore:    -0.12,
				MaxScore:    0.2,
			},
		},
		{
			name:    "empty source",
			report:  Report{ID: "r-2", Rows: 1},
			wantErr: true,
		},
		{
			name:   "source with separators",
			report: Report{Source: "s3 bucket/with:odd*chars.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()

			err := store.Put(context.Background(), tt.report)
			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			got, found, err := store.GetLatest(context.Background(), tt.report.Source)
			if err != nil {
				t.Fatalf("GetLatest() unexpected error = %v", err)
			}
			if !found {
				t.Fatal("GetLatest() found = false, want true")
			}
			if got.ID != tt.report.ID || got.Rows != tt.report.Rows || got.Anomalies != tt.report.Anomalies {
				t.Errorf("GetLatest() = %+v, want %+v", got, tt.report)
			}
		})
	}
}

func TestMemoryStore_GetLatest_NotFound(t *testing.T) {
	store := NewMemoryStore()

	report, found, err := store.GetLatest(context.Background(), "nonexistent.csv")
	if err != nil {
		t.Errorf("GetLatest() unexpected error = %v", err)
	}
	if found {
		t.Error("GetLatest() found = true for nonexistent source, want false")
	}
	if report.Source != "" {
		t.Errorf("GetLatest() returned non-zero report for nonexistent source")
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, Report{Source: "a.csv"}); err == nil {
		t.Error("Put() with canceled context should fail")
	}
	if _, _, err := store.GetLatest(ctx, "a.csv"); err == nil {
		t.Error("GetLatest() with canceled context should fail")
	}
}

func TestMemoryStore_Put_Update(t *testing.T) {
	store := NewMemoryStore()
	source := "update.csv"

	if err := store.Put(context.Background(), Report{ID: "first", Source: source, Rows: 3}); err != nil {
		t.Fatalf("Put() first report error = %v", err)
	}
	if err := store.Put(context.Background(), Report{ID: "second", Source: source, Rows: 5}); err != nil {
		t.Fatalf("Put() second report error = %v", err)
	}

	got, found, err := store.GetLatest(context.Background(), source)
	if err != nil || !found {
		t.Fatalf("GetLatest() = found %v, err %v", found, err)
	}
	if got.ID != "second" || got.Rows != 5 {
		t.Errorf("GetLatest() returned old report %+v, want updated one", got)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d after update, want 1", store.Len())
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	sources := []string{"a.csv", "b.csv", "c.csv", "d.csv"}

	var wg sync.WaitGroup
	for _, source := range sources {
		wg.Add(2)
		go func(src string) {
			defer wg.Done()
			for i := range 100 {
				report := Report{ID: fmt.Sprintf("%s-%d", src, i), Source: src, Rows: i}
				if err := store.Put(context.Background(), report); err != nil {
					t.Errorf("Put(%s) error = %v", src, err)
				}
			}
		}(source)
		go func(src string) {
			defer wg.Done()
			for range 100 {
				if _, _, err := store.GetLatest(context.Background(), src); err != nil {
					t.Errorf("GetLatest(%s) error = %v", src, err)
				}
			}
		}(source)
	}
	wg.Wait()

	if store.Len() != len(sources) {
		t.Errorf("Len() = %d after concurrent writes, want %d", store.Len(), len(sources))
	}
	for _, source := range sources {
		got, found, err := store.GetLatest(context.Background(), source)
		if err != nil || !found {
			t.Errorf("GetLatest(%s) = found %v, err %v", source, found, err)
		}
		if got.Source != source {
			t.Errorf("GetLatest(%s) returned source %q", source, got.Source)
		}
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put(context.Background(), Report{Source: "delete.csv"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if !store.Delete("delete.csv") {
		t.Error("Delete() returned false, want true for existing source")
	}
	if _, found, _ := store.GetLatest(context.Background(), "delete.csv"); found {
		t.Error("GetLatest() found = true after delete, want false")
	}
	if store.Delete("nonexistent.csv") {
		t.Error("Delete() returned true for nonexistent source, want false")
	}
}

func TestMemoryStoreWithTTL_Expiration(t *testing.T) {
	ttl := 100 * time.Millisecond
	cleanupInterval := 50 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	if err := store.Put(context.Background(), Report{Source: "ttl.csv", GeneratedAt: time.Now()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, found, _ := store.GetLatest(context.Background(), "ttl.csv"); !found {
		t.Fatal("Report should exist immediately after Put")
	}

	time.Sleep(ttl + cleanupInterval + 50*time.Millisecond)

	if _, found, _ := store.GetLatest(context.Background(), "ttl.csv"); found {
		t.Error("Report should be removed after TTL expiration")
	}
	if store.Len() != 0 {
		t.Errorf("Store should be empty after cleanup, got %d reports", store.Len())
	}
}

func TestMemoryStoreWithTTL_ExpiredBeforeCleanup(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Minute, time.Hour)
	defer store.Stop()

	old := Report{Source: "old.csv", GeneratedAt: time.Now().Add(-2 * time.Minute)}
	if err := store.Put(context.Background(), old); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, found, _ := store.GetLatest(context.Background(), "old.csv"); found {
		t.Error("expired report should not be returned")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1 before cleanup runs", store.Len())
	}
}

func TestMemoryStoreWithTTL_Stop(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Minute, time.Second)

	done := make(chan struct{})
	go func() {
		store.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete within timeout")
	}

	// Calling Stop again should be safe
	store.Stop()
}

func TestMemoryStore_StopWithoutTTL(t *testing.T) {
	store := NewMemoryStore()
	store.Stop()

	if err := store.Put(context.Background(), Report{Source: "test.csv"}); err != nil {
		t.Errorf("Put() after Stop() error = %v", err)
	}
}

func TestMemoryStoreWithTTL_PanicOnInvalidTTL(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewMemoryStoreWithTTL should panic with zero TTL")
		}
	}()

	NewMemoryStoreWithTTL(0, time.Second)
}
