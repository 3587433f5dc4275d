package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"testemunhas/api/internal/analysis"
	"testemunhas/api/internal/detect"
)

func snapshot(fp string, findings int) Snapshot {
	res := detect.Result{}
	for i := 0; i < findings; i++ {
		res.TrocaDireta = append(res.TrocaDireta, detect.TrocaDireta{TestemunhaA: "A", TestemunhaB: fmt.Sprintf("B%d", i)})
	}
	return Snapshot{
		Fingerprint: fp,
		Filtros:     detect.Filter{CNJs: []string{"0000001-00.2024.5.01.0001"}},
		Resultado:   res,
		Relatorio:   analysis.Report{Recomendacoes: []string{"revisar"}},
		GeradoEm:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveHistoryAndGet(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	first, err := a.Save("org-1", snapshot("aaaaaaaaaaaaaaaa", 1), "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(first.Hash) != 7 {
		t.Fatalf("expected short hash, got %q", first.Hash)
	}
	if _, err := os.Stat(filepath.Join(dir, "org-1", ".git")); err != nil {
		t.Fatalf("repo missing: %v", err)
	}

	second, err := a.Save("org-1", snapshot("bbbbbbbbbbbbbbbb", 2), "analista")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	history, err := a.History("org-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
	if history[0].Hash != second.Hash || history[1].Hash != first.Hash {
		t.Fatalf("history not newest first: %+v", history)
	}
	if history[0].Author != "analista" {
		t.Fatalf("unexpected author %q", history[0].Author)
	}

	snap, commit, err := a.Get("org-1", first.Hash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if commit.Hash != first.Hash {
		t.Fatalf("Get() commit = %s, want %s", commit.Hash, first.Hash)
	}
	if snap.Fingerprint != "aaaaaaaaaaaaaaaa" || len(snap.Resultado.TrocaDireta) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Filtros.CNJs) != 1 || snap.Relatorio.Recomendacoes[0] != "revisar" {
		t.Fatalf("filters or report not persisted: %+v", snap)
	}

	limited, err := a.History("org-1", 1)
	if err != nil {
		t.Fatalf("History(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(limited))
	}
}

func TestIdenticalRunsStillCommit(t *testing.T) {
	a := New(t.TempDir())
	for i := 0; i < 2; i++ {
		if _, err := a.Save("org", snapshot("same", 0), ""); err != nil {
			t.Fatalf("Save() #%d error = %v", i, err)
		}
	}
	history, err := a.History("org", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
}

func TestOrgsAreIsolated(t *testing.T) {
	a := New(t.TempDir())
	if _, err := a.Save("org-a", snapshot("x", 0), ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	history, err := a.History("org-b", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %+v", history)
	}
	if _, _, err := a.Get("org-b", "abcdef1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUnknownHash(t *testing.T) {
	a := New(t.TempDir())
	if _, err := a.Save("org", snapshot("x", 0), ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, _, err := a.Get("org", "0000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsPathLikeOrgIDs(t *testing.T) {
	a := New(t.TempDir())
	for _, org := range []string{"", "..", "../etc", "a/b"} {
		if _, err := a.Save(org, snapshot("x", 0), ""); !errors.Is(err, ErrInvalidOrg) {
			t.Fatalf("Save(%q) error = %v, want ErrInvalidOrg", org, err)
		}
	}
}

func TestConcurrentSavesAreSerialized(t *testing.T) {
	a := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := a.Save("org", snapshot(fmt.Sprintf("fp-%d", i), i), ""); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Save() error = %v", err)
	}
	history, err := a.History("org", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("expected 5 commits, got %d", len(history))
	}
}
