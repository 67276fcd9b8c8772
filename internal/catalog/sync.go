package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/model"
)

// ErrMissingColumns rejects a record set lacking a natural-key column.
var ErrMissingColumns = eris.New("catalog: missing key columns")

// DefaultSpecialty fills an empty specialty_task_group_area on insert.
const DefaultSpecialty = "UNKNOWN"

// Store is the persistence surface the sync needs.
type Store interface {
	AllIdentities(ctx context.Context) (map[model.Identity]struct{}, error)
	InsertEntries(ctx context.Context, entries []model.CatalogEntry) (int64, error)
}

// SyncResult reports what a Sync did.
type SyncResult struct {
	Total           int                  `json:"total"`
	Existing        int                  `json:"existing"`
	BatchDuplicates int                  `json:"batch_duplicates"`
	// Inserted holds the candidate entries sent to the store.
	Inserted []model.CatalogEntry `json:"-"`
	// Written is the row count the store reports. It can trail
	// len(Inserted) when a concurrent writer inserted the same identity.
	Written int64 `json:"written"`
}

// New is the number of entries actually added to the catalog.
func (r *SyncResult) New() int {
	return int(r.Written)
}

// Synchronizer inserts records whose identity is not yet in the catalog.
type Synchronizer struct {
	store  Store
	bucket string
	now    func() time.Time
	log    *zap.Logger
}

// NewSynchronizer creates a Synchronizer. bucket is recorded on every
// inserted entry.
func NewSynchronizer(st Store, bucket string) *Synchronizer {
	return &Synchronizer{
		store:  st,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
		log:    zap.L().With(zap.String("component", "catalog.sync")),
	}
}

// Sync inserts every record of set whose identity is unknown to the store.
// Within the batch, the first occurrence of an identity wins. Running Sync
// twice with the same input inserts nothing the second time.
func (s *Synchronizer) Sync(ctx context.Context, set model.RecordSet) (*SyncResult, error) {
	if missing := set.MissingColumns(model.KeyColumns); len(missing) > 0 {
		s.log.Error("record set lacks key columns", zap.Strings("missing", missing))
		return nil, eris.Wrapf(ErrMissingColumns, "catalog: missing %s", strings.Join(missing, ", "))
	}

	res := &SyncResult{Total: len(set.Records)}
	if len(set.Records) == 0 {
		s.log.Warn("empty record set, nothing to sync")
		return res, nil
	}

	s.logDuplicateTitles(set.Records)

	existing, err := s.store.AllIdentities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: load identities")
	}

	now := s.now()
	seen := make(map[model.Identity]struct{}, len(set.Records))
	var fresh []model.CatalogEntry
	for _, rec := range set.Records {
		id := RecordIdentity(rec)
		if _, ok := existing[id]; ok {
			res.Existing++
			s.log.Debug("record already cataloged",
				zap.String("identity", string(id)),
				zap.String("recognition_number", rec.RecognitionNumber),
			)
			continue
		}
		if _, ok := seen[id]; ok {
			res.BatchDuplicates++
			s.log.Warn("duplicate identity within batch, keeping first",
				zap.String("identity", string(id)),
				zap.String("recognition_number", rec.RecognitionNumber),
				zap.String("designation", rec.Designation),
			)
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, s.newEntry(id, rec, now))
	}

	s.log.Info("sync reconciled",
		zap.Int("total", res.Total),
		zap.Int("cataloged", len(existing)),
		zap.Int("existing", res.Existing),
		zap.Int("batch_duplicates", res.BatchDuplicates),
		zap.Int("new", len(fresh)),
	)

	if len(fresh) == 0 {
		return res, nil
	}

	written, err := s.store.InsertEntries(ctx, fresh)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: insert entries")
	}
	res.Inserted = fresh
	res.Written = written
	if written != int64(len(fresh)) {
		s.log.Warn("store skipped conflicting rows",
			zap.Int("candidates", len(fresh)),
			zap.Int64("written", written),
		)
	}
	return res, nil
}

// newEntry builds the row for rec. The identity is computed from the raw
// values before the date and specialty are normalized.
func (s *Synchronizer) newEntry(id model.Identity, rec model.StandardRecord, now time.Time) model.CatalogEntry {
	if date, ok := model.NormalizeDate(rec.DateOfEntry); ok {
		rec.DateOfEntry = date
	} else if rec.DateOfEntry != "" {
		s.log.Debug("keeping unparseable date_of_entry",
			zap.String("identity", string(id)),
			zap.String("date_of_entry", rec.DateOfEntry),
		)
	}
	if strings.TrimSpace(rec.SpecialtyArea) == "" {
		rec.SpecialtyArea = DefaultSpecialty
	}
	return model.CatalogEntry{
		StandardRecord: rec,
		Identity:       id,
		Bucket:         s.bucket,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *Synchronizer) logDuplicateTitles(records []model.StandardRecord) {
	counts := make(map[string]int)
	for _, r := range records {
		if r.Title != "" {
			counts[r.Title]++
		}
	}
	var dups []string
	for title, n := range counts {
		if n > 1 {
			dups = append(dups, title)
		}
	}
	if len(dups) == 0 {
		s.log.Debug("no duplicate standard titles")
		return
	}
	sort.Strings(dups)
	for _, title := range dups {
		s.log.Warn("duplicate standard_title", zap.String("title", title), zap.Int("count", counts[title]))
	}
}
