package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"testemunhas/api/internal/model"
)

var ErrNotFound = errors.New("not found")

// ImportBatch records one import into an organization's working set.
// Summary and Reconciliation hold JSON documents.
type ImportBatch struct {
	ID             string    `json:"id"`
	OrgID          string    `json:"org_id"`
	Source         string    `json:"source"`
	Summary        string    `json:"summary"`
	Reconciliation string    `json:"reconciliation"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnalysisRun records one detection run. ArchiveRef is the commit hash of
// the archived report, empty when archiving is disabled.
type AnalysisRun struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Fingerprint string    `json:"fingerprint"`
	Filters     string    `json:"filters"`
	Summary     string    `json:"summary"`
	ArchiveRef  string    `json:"archive_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// caseRow is the persisted form of a case. The full record lives in Data;
// the other columns exist for lookups and search.
type caseRow struct {
	OrgID      string `db:"org_id"`
	CNJDigits  string `db:"cnj_digits"`
	CNJ        string `db:"cnj"`
	BatchID    string `db:"batch_id"`
	IsStub     bool   `db:"is_stub"`
	Reclamante string `db:"reclamante"`
	Reclamada  string `db:"reclamada"`
	Comarca    string `db:"comarca"`
	UF         string `db:"uf"`
	Position   int    `db:"position"`
	Data       string `db:"data"`
}

type witnessRow struct {
	OrgID    string `db:"org_id"`
	Nome     string `db:"nome"`
	BatchID  string `db:"batch_id"`
	Position int    `db:"position"`
	Data     string `db:"data"`
}

func newCaseRow(orgID, batchID string, position int, c model.Case) (caseRow, error) {
	var payload any = c.Record()
	switch stub := c.(type) {
	case model.StubCase:
		payload = stub
	case *model.StubCase:
		payload = *stub
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return caseRow{}, fmt.Errorf("encode case %s: %w", c.Key(), err)
	}
	record := c.Record()
	return caseRow{
		OrgID:      orgID,
		CNJDigits:  record.CNJDigits,
		CNJ:        record.CNJ,
		BatchID:    batchID,
		IsStub:     model.IsStub(c),
		Reclamante: record.Reclamante,
		Reclamada:  record.Reclamada,
		Comarca:    record.Comarca,
		UF:         record.UF,
		Position:   position,
		Data:       string(data),
	}, nil
}

func (r caseRow) toCase() (model.Case, error) {
	if r.IsStub {
		var stub model.StubCase
		if err := json.Unmarshal([]byte(r.Data), &stub); err != nil {
			return nil, fmt.Errorf("decode stub %s: %w", r.CNJDigits, err)
		}
		return stub, nil
	}
	var record model.Processo
	if err := json.Unmarshal([]byte(r.Data), &record); err != nil {
		return nil, fmt.Errorf("decode case %s: %w", r.CNJDigits, err)
	}
	return model.RealCase{Processo: record}, nil
}

func newWitnessRow(orgID, batchID string, position int, w model.Testemunha) (witnessRow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return witnessRow{}, fmt.Errorf("encode witness %s: %w", w.Nome, err)
	}
	return witnessRow{OrgID: orgID, Nome: w.Nome, BatchID: batchID, Position: position, Data: string(data)}, nil
}

func (r witnessRow) toWitness() (model.Testemunha, error) {
	var w model.Testemunha
	if err := json.Unmarshal([]byte(r.Data), &w); err != nil {
		return model.Testemunha{}, fmt.Errorf("decode witness %s: %w", r.Nome, err)
	}
	return w, nil
}
