package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// FeedRecord is one assertion from an external feed: the org as the feed
// knows it, keyed by its local identifier in the feed's scheme.
type FeedRecord struct {
	LocalID string          `json:"local_id"`
	Name    string          `json:"name"`
	Flags   domain.OrgFlags `json:"flags"`
	Aliases []struct {
		Alias string `json:"alias"`
		Lang  string `json:"lang"`
	} `json:"aliases,omitempty"`
	PostcodeIDs []int64 `json:"postcode_ids,omitempty"`
	Comment     string  `json:"comment,omitempty"`
}

type FeedBatchInput struct {
	SourceID int64
	SchemeID int64
	Records  []FeedRecord

	// Parallelism bounds concurrent record workers. Zero means the
	// service default.
	Parallelism int
}

type FeedRecordOutcome struct {
	LocalID string `json:"local_id"`
	OrgID   int64  `json:"org_id,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type FeedBatchResult struct {
	BatchID  uuid.UUID           `json:"batch_id"`
	Records  int                 `json:"records"`
	Created  int                 `json:"created"`
	Applied  int                 `json:"applied"`
	Failed   int                 `json:"failed"`
	Outcomes []FeedRecordOutcome `json:"outcomes"`
}

// IngestService applies feed batches through the correlator: resolve each
// record's local id to a master org, create the org on miss (with
// correlation and name), then assert the record's alias and location facts.
type IngestService interface {
	SubmitBatch(ctx context.Context, in FeedBatchInput) (*FeedBatchResult, error)
	GetBatchRecords(ctx context.Context, batchID uuid.UUID) ([]*domain.IngestRecord, error)
}

// IngestMetrics counts per-record outcomes. Implemented by the observability
// metrics; nil disables counting.
type IngestMetrics interface {
	IncIngestRecord(status string)
}

type ingestService struct {
	db      *gorm.DB
	log     *logger.Logger
	metrics IngestMetrics

	defaultParallelism int

	sources      repos.SourceRepo
	schemes      repos.SchemeRepo
	ingest       repos.IngestRepo
	correlations repos.CorrelationRepo

	orgAgg         domainagg.OrgAggregate
	aliasAgg       domainagg.AliasAggregate
	correlationAgg domainagg.CorrelationAggregate
	locationAgg    domainagg.LocationAggregate
}

func NewIngestService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics IngestMetrics,
	defaultParallelism int,
	sources repos.SourceRepo,
	schemes repos.SchemeRepo,
	ingest repos.IngestRepo,
	correlations repos.CorrelationRepo,
	orgAgg domainagg.OrgAggregate,
	aliasAgg domainagg.AliasAggregate,
	correlationAgg domainagg.CorrelationAggregate,
	locationAgg domainagg.LocationAggregate,
) IngestService {
	if defaultParallelism < 1 {
		defaultParallelism = 4
	}
	return &ingestService{
		db:                 db,
		log:                baseLog.With("service", "IngestService"),
		metrics:            metrics,
		defaultParallelism: defaultParallelism,
		sources:            sources,
		schemes:            schemes,
		ingest:             ingest,
		correlations:       correlations,
		orgAgg:             orgAgg,
		aliasAgg:           aliasAgg,
		correlationAgg:     correlationAgg,
		locationAgg:        locationAgg,
	}
}

func (s *ingestService) dbc(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}

func (s *ingestService) SubmitBatch(ctx context.Context, in FeedBatchInput) (*FeedBatchResult, error) {
	const op = "Ingest.SubmitBatch"
	if in.SourceID == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing source", nil)
	}
	if in.SchemeID == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing scheme", nil)
	}
	if len(in.Records) == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "empty batch", nil)
	}
	src, err := s.sources.GetByID(s.dbc(ctx), in.SourceID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown source id: %d", in.SourceID), nil)
	}
	scheme, err := s.schemes.GetByID(s.dbc(ctx), in.SchemeID)
	if err != nil {
		return nil, err
	}
	if scheme == nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown scheme id: %d", in.SchemeID), nil)
	}

	batch, err := s.ingest.CreateBatch(s.dbc(ctx), &domain.IngestBatch{
		SourceID:   in.SourceID,
		ReceivedAt: time.Now().UTC(),
		Records:    len(in.Records),
	})
	if err != nil {
		return nil, err
	}

	rows := make([]*domain.IngestRecord, 0, len(in.Records))
	for _, rec := range in.Records {
		raw, merr := json.Marshal(rec)
		if merr != nil {
			return nil, domainagg.Wrap(domainagg.CodeValidation, op, merr)
		}
		rows = append(rows, &domain.IngestRecord{
			BatchID:    batch.ID,
			SchemeID:   in.SchemeID,
			LocalID:    rec.LocalID,
			Attributes: datatypes.JSON(raw),
			Status:     domain.IngestStatusPending,
		})
	}
	if _, err := s.ingest.CreateRecords(s.dbc(ctx), rows); err != nil {
		return nil, err
	}

	parallelism := in.Parallelism
	if parallelism < 1 {
		parallelism = s.defaultParallelism
	}

	outcomes := make([]FeedRecordOutcome, len(in.Records))
	var mu sync.Mutex
	result := &FeedBatchResult{BatchID: batch.ID, Records: len(in.Records)}

	// Records sharing a local id run sequentially on one worker, so a feed
	// repeating an id cannot race itself into two master orgs.
	slots := make(map[string]int, len(in.Records))
	order := make([][]int, 0, len(in.Records))
	for i, rec := range in.Records {
		if rec.LocalID == "" {
			order = append(order, []int{i})
			continue
		}
		if slot, ok := slots[rec.LocalID]; ok {
			order[slot] = append(order[slot], i)
			continue
		}
		slots[rec.LocalID] = len(order)
		order = append(order, []int{i})
	}

	apply := func(gctx context.Context, i int) {
		outcome := s.applyRecord(gctx, in, rows[i], in.Records[i])
		outcomes[i] = outcome
		if s.metrics != nil {
			s.metrics.IncIngestRecord(outcome.Status)
		}
		mu.Lock()
		switch outcome.Status {
		case domain.IngestStatusCreated:
			result.Created++
		case domain.IngestStatusApplied:
			result.Applied++
		default:
			result.Failed++
		}
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, idxs := range order {
		idxs := idxs
		g.Go(func() error {
			for _, i := range idxs {
				apply(gctx, i)
			}
			return nil
		})
	}
	// Workers never abort the batch; per-record failures land in outcomes.
	_ = g.Wait()

	result.Outcomes = outcomes
	if err := s.ingest.UpdateBatchCounts(s.dbc(ctx), batch.ID, result.Records, result.Failed); err != nil {
		s.log.Warn("batch count update failed", "batch_id", batch.ID, "error", err)
	}
	return result, nil
}

func (s *ingestService) applyRecord(ctx context.Context, in FeedBatchInput, row *domain.IngestRecord, rec FeedRecord) FeedRecordOutcome {
	outcome := FeedRecordOutcome{LocalID: rec.LocalID}

	fail := func(err error) FeedRecordOutcome {
		status := domain.IngestStatusFailed
		if domainagg.IsCode(err, domainagg.CodeCorrelationConflict) || domainagg.IsCode(err, domainagg.CodeConflict) {
			status = domain.IngestStatusConflict
		}
		outcome.Status = status
		outcome.Error = err.Error()
		s.record(ctx, row.ID, map[string]interface{}{"status": status, "error": err.Error()})
		return outcome
	}

	if rec.LocalID == "" || rec.Name == "" {
		return fail(domainagg.NewError(domainagg.CodeValidation, "Ingest.ApplyRecord", "record needs local_id and name", nil))
	}

	existing, err := s.correlations.ResolveOpen(s.dbc(ctx), in.SchemeID, rec.LocalID)
	if err != nil {
		return fail(err)
	}

	var orgID int64
	created := false
	if existing != nil {
		orgID = existing.MasterID
	} else {
		res, err := s.orgAgg.Create(ctx, domainagg.CreateOrgInput{
			Name:     rec.Name,
			Flags:    rec.Flags,
			SourceID: in.SourceID,
			Comment:  rec.Comment,
		})
		if err != nil {
			return fail(err)
		}
		orgID = res.OrgID
		created = true
		if _, err := s.correlationAgg.Correlate(ctx, domainagg.CorrelateInput{
			MasterID: orgID,
			OtherID:  rec.LocalID,
			SchemeID: in.SchemeID,
			SourceID: in.SourceID,
			Comment:  rec.Comment,
		}); err != nil {
			return fail(err)
		}
	}

	for _, al := range rec.Aliases {
		if _, err := s.aliasAgg.Add(ctx, domainagg.AddAliasInput{
			OrgID:    orgID,
			Alias:    al.Alias,
			Lang:     al.Lang,
			SourceID: in.SourceID,
			Comment:  rec.Comment,
		}); err != nil {
			return fail(err)
		}
	}
	for _, pc := range rec.PostcodeIDs {
		if _, err := s.locationAgg.Add(ctx, domainagg.AddLocationInput{
			OrgID:      orgID,
			PostcodeID: pc,
			SourceID:   in.SourceID,
			Comment:    rec.Comment,
		}); err != nil {
			return fail(err)
		}
	}

	status := domain.IngestStatusApplied
	if created {
		status = domain.IngestStatusCreated
	}
	outcome.OrgID = orgID
	outcome.Status = status
	s.record(ctx, row.ID, map[string]interface{}{"status": status, "org_id": orgID})
	return outcome
}

func (s *ingestService) record(ctx context.Context, id uuid.UUID, updates map[string]interface{}) {
	if err := s.ingest.UpdateRecord(s.dbc(ctx), id, updates); err != nil {
		s.log.Warn("ingest record update failed", "record_id", id, "error", err)
	}
}

func (s *ingestService) GetBatchRecords(ctx context.Context, batchID uuid.UUID) ([]*domain.IngestRecord, error) {
	return s.ingest.ListRecordsByBatch(s.dbc(ctx), batchID)
}
