// Package archive keeps every analysis report of an organization in its own
// git repository, one commit per run, so past reports can be listed and
// read back by commit hash.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"testemunhas/api/internal/analysis"
	"testemunhas/api/internal/detect"
)

const reportFile = "report.json"

var (
	ErrNotFound   = errors.New("archived report not found")
	ErrInvalidOrg = errors.New("invalid organization id")

	orgPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)
)

// Snapshot is what gets committed for one analysis run.
type Snapshot struct {
	Fingerprint string          `json:"fingerprint"`
	Filtros     detect.Filter   `json:"filtros"`
	Resultado   detect.Result   `json:"resultado"`
	Relatorio   analysis.Report `json:"relatorio"`
	GeradoEm    time.Time       `json:"gerado_em"`
}

type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Archive struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Archive {
	return &Archive{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Save commits snap as the new head of the org's repository, creating the
// repository on first use. Runs with identical content still get a commit.
func (a *Archive) Save(orgID string, snap Snapshot, author string) (Commit, error) {
	if !orgPattern.MatchString(orgID) {
		return Commit{}, ErrInvalidOrg
	}
	lock := a.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := a.openOrInit(orgID)
	if err != nil {
		return Commit{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Commit{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, reportFile), append(payload, '\n'), 0o644); err != nil {
		return Commit{}, fmt.Errorf("write %s: %w", reportFile, err)
	}
	if _, err := worktree.Add(reportFile); err != nil {
		return Commit{}, fmt.Errorf("git add report: %w", err)
	}

	if author == "" {
		author = "testemunhas"
	}
	when := snap.GeradoEm
	if when.IsZero() {
		when = time.Now()
	}
	message := fmt.Sprintf("Analysis %s: %d finding(s)", shortFingerprint(snap.Fingerprint), snap.Resultado.Total())
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: "analysis@testemunhas.local",
			When:  when,
		},
	})
	if err != nil {
		return Commit{}, fmt.Errorf("commit report: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// History lists the org's archived runs, newest first. An org that never
// ran an analysis has an empty history.
func (a *Archive) History(orgID string, limit int) ([]Commit, error) {
	if !orgPattern.MatchString(orgID) {
		return nil, ErrInvalidOrg
	}
	lock := a.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(a.repoPath(orgID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Get reads the snapshot stored at hash, which may be abbreviated.
func (a *Archive) Get(orgID, hash string) (Snapshot, Commit, error) {
	if !orgPattern.MatchString(orgID) {
		return Snapshot{}, Commit{}, ErrInvalidOrg
	}
	lock := a.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(a.repoPath(orgID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Snapshot{}, Commit{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, Commit{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return Snapshot{}, Commit{}, ErrNotFound
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return Snapshot{}, Commit{}, ErrNotFound
	}
	snap, err := readSnapshot(commitObj)
	if err != nil {
		return Snapshot{}, Commit{}, err
	}
	return snap, toCommit(commitObj), nil
}

func (a *Archive) openOrInit(orgID string) (*git.Repository, error) {
	path := a.repoPath(orgID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (a *Archive) repoPath(orgID string) string {
	return filepath.Join(a.baseDir, orgID)
}

func (a *Archive) orgLock(orgID string) *sync.Mutex {
	a.lockMu.Lock()
	defer a.lockMu.Unlock()
	lock, ok := a.locks[orgID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[orgID] = lock
	}
	return lock
}

func readSnapshot(commitObj *object.Commit) (Snapshot, error) {
	file, err := commitObj.File(reportFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s from commit: %w", reportFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Snapshot{}, fmt.Errorf("open report reader: %w", err)
	}
	defer reader.Close()

	var snap Snapshot
	if err := json.NewDecoder(reader).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode report: %w", err)
	}
	return snap, nil
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	if fp == "" {
		return "sem-fingerprint"
	}
	return fp
}
