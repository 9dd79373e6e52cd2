package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/evotar/apiserver/internal/ids"
	"github.com/evotar/apiserver/internal/mq"
	"github.com/evotar/apiserver/internal/obs"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/storage"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/internal/tally"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// ResultRepository persists computed results.
type ResultRepository interface {
	Replace(ctx context.Context, electionID uuid.UUID, results []types.ElectionResult) error
	ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.ElectionResult, error)
}

// VoteCounter groups an election's votes by candidate and voter department.
type VoteCounter interface {
	CountByCandidate(ctx context.Context, electionID uuid.UUID) ([]types.VoteCount, error)
}

// EligibleVoterCounter counts registered voters per department.
type EligibleVoterCounter interface {
	CountVotersByDepartment(ctx context.Context) (map[int]int, error)
}

// Publisher sends tabulation jobs to a queue.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Archive keeps exported result reports in object storage.
type Archive interface {
	Put(ctx context.Context, obj storage.Object) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// Export describes one archived results report.
type Export struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ExportedAt time.Time `json:"exported_at"`
}

// TabulationJob is the queue payload that asks a worker to tabulate an election.
type TabulationJob struct {
	ElectionID  uuid.UUID `json:"election_id"`
	RequestedAt time.Time `json:"requested_at"`
	JobID       string    `json:"job_id"`
}

// ResultsReport is an election's results as returned to clients and exported.
type ResultsReport struct {
	Election types.Election         `json:"election"`
	Strategy string                 `json:"strategy"`
	Results  []types.ElectionResult `json:"results"`
}

// TabulationService computes and serves election results.
type TabulationService struct {
	tx         Transactor
	elections  ElectionRepository
	lookups    ElectionTypeReader
	candidates CandidateLister
	votes      VoteCounter
	voters     EligibleVoterCounter
	results    ResultRepository
	events     EventLogger

	publisher Publisher
	channel   string
	archive   Archive

	now func() time.Time
}

func NewTabulationService(
	tx Transactor,
	elections ElectionRepository,
	lookups ElectionTypeReader,
	candidates CandidateLister,
	votes VoteCounter,
	voters EligibleVoterCounter,
	results ResultRepository,
	events EventLogger,
) *TabulationService {
	if tx == nil {
		tx = noopTx{}
	}
	if events == nil {
		events = noopLogger{}
	}
	return &TabulationService{
		tx:         tx,
		elections:  elections,
		lookups:    lookups,
		candidates: candidates,
		votes:      votes,
		voters:     voters,
		results:    results,
		events:     events,
		now:        time.Now,
	}
}

// SetPublisher routes Enqueue through a queue channel instead of running inline.
func (s *TabulationService) SetPublisher(p Publisher, channel string) {
	s.publisher = p
	s.channel = channel
}

// SetArchive enables result exports to object storage.
func (s *TabulationService) SetArchive(a Archive) {
	s.archive = a
}

// Enqueue requests a tabulation run. Without a queue the run happens inline.
func (s *TabulationService) Enqueue(ctx context.Context, electionID uuid.UUID) error {
	if s.publisher == nil {
		_, err := s.Run(ctx, electionID)
		return err
	}

	now := s.now().UTC()
	job := TabulationJob{ElectionID: electionID, RequestedAt: now, JobID: ids.NewAt(now)}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if _, err := s.publisher.Publish(ctx, s.channel, data, map[string]string{
		"type":        "tabulate",
		"election_id": electionID.String(),
		"job_id":      job.JobID,
	}); err != nil {
		return fmt.Errorf("publish tabulation job: %w", err)
	}
	return nil
}

// RunJob handles one queued tabulation job.
func (s *TabulationService) RunJob(ctx context.Context, msg mq.Message) error {
	var job TabulationJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		return mq.Permanent(fmt.Errorf("decode tabulation job %s: %w", msg.ID, err))
	}
	if job.ElectionID == uuid.Nil {
		return mq.Permanent(fmt.Errorf("tabulation job %s has no election id", msg.ID))
	}
	_, err := s.Run(ctx, job.ElectionID)
	if errors.Is(err, store.ErrNotFound) {
		return mq.Permanent(err)
	}
	return err
}

// Tabulate recomputes results on request of a staff member.
func (s *TabulationService) Tabulate(ctx context.Context, actor session.Session, electionID uuid.UUID) (ResultsReport, error) {
	if err := requireStaff(actor); err != nil {
		return ResultsReport{}, err
	}
	return s.Run(ctx, electionID)
}

// Run recomputes and replaces an election's results. Reruns over the same
// votes produce the same rows.
func (s *TabulationService) Run(ctx context.Context, electionID uuid.UUID) (ResultsReport, error) {
	var report ResultsReport
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		election, err := s.elections.Get(ctx, electionID)
		if err != nil {
			return err
		}
		electionType, err := s.lookups.GetElectionType(ctx, election.ElectionTypeID)
		if err != nil {
			return err
		}
		candidates, err := s.candidates.ListByElection(ctx, electionID)
		if err != nil {
			return err
		}
		counts, err := s.votes.CountByCandidate(ctx, electionID)
		if err != nil {
			return err
		}

		in := tally.Input{
			ElectionID:   electionID,
			Candidates:   candidates,
			Counts:       counts,
			CalculatedAt: s.now().UTC().Truncate(time.Microsecond),
		}
		if electionType.Strategy == types.StrategyExecutive {
			if in.EligibleByDepartment, err = s.voters.CountVotersByDepartment(ctx); err != nil {
				return err
			}
		}

		results, err := tally.Run(electionType.Strategy, in)
		if err != nil {
			return err
		}
		if err := s.results.Replace(ctx, electionID, results); err != nil {
			return err
		}
		if results == nil {
			results = []types.ElectionResult{}
		}
		report = ResultsReport{Election: election, Strategy: electionType.Strategy, Results: results}
		return nil
	})
	if err != nil {
		obs.Tabulations.WithLabelValues(report.Strategy, "error").Inc()
		s.events.Log(ctx, syslog.Event{
			Action:      "Tabulation Failed",
			Description: err.Error(),
			Metadata:    map[string]any{"electionId": electionID.String()},
		})
		return ResultsReport{}, err
	}

	obs.Tabulations.WithLabelValues(report.Strategy, "ok").Inc()
	s.export(ctx, report)
	s.events.Log(ctx, syslog.Event{
		Action:      "Results Calculated",
		Description: fmt.Sprintf("Results for %q were calculated", report.Election.Title),
		Metadata: map[string]any{
			"electionId": electionID.String(),
			"strategy":   report.Strategy,
			"rows":       len(report.Results),
		},
	})
	return report, nil
}

// export is best-effort: the results are already committed.
func (s *TabulationService) export(ctx context.Context, report ResultsReport) {
	if s.archive == nil {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		obs.Logger().Warn("marshal results report", slog.Any("error", err))
		return
	}
	key := exportPrefix(report.Election.ID) + ids.New() + ".json"
	err = s.archive.Put(ctx, storage.Object{
		Key:         key,
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: "application/json",
		Metadata: map[string]string{
			"election-id": report.Election.ID.String(),
			"strategy":    report.Strategy,
		},
	})
	if err != nil {
		obs.Logger().Warn("export results report",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

// GetResults returns stored results when the viewer may see them.
func (s *TabulationService) GetResults(ctx context.Context, viewer session.Session, electionID uuid.UUID) (ResultsReport, error) {
	election, err := s.elections.Get(ctx, electionID)
	if err != nil {
		return ResultsReport{}, err
	}
	if !ResultsVisible(election, viewer) {
		return ResultsReport{}, ErrResultsHidden
	}
	electionType, err := s.lookups.GetElectionType(ctx, election.ElectionTypeID)
	if err != nil {
		return ResultsReport{}, err
	}
	results, err := s.results.ListByElection(ctx, electionID)
	if err != nil {
		return ResultsReport{}, err
	}
	return ResultsReport{Election: election, Strategy: electionType.Strategy, Results: results}, nil
}

// ListExports returns the archived reports of an election, newest first.
func (s *TabulationService) ListExports(ctx context.Context, actor session.Session, electionID uuid.UUID) ([]Export, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, ErrExportsDisabled
	}
	if _, err := s.elections.Get(ctx, electionID); err != nil {
		return nil, err
	}

	prefix := exportPrefix(electionID)
	objects, err := s.archive.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	exports := make([]Export, 0, len(objects))
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, prefix)
		if !validExportName(name) {
			continue
		}
		exports = append(exports, Export{Name: name, Size: obj.Size, ExportedAt: obj.LastModified})
	}
	return exports, nil
}

// OpenExport streams one archived report. The caller closes the reader.
func (s *TabulationService) OpenExport(ctx context.Context, actor session.Session, electionID uuid.UUID, name string) (io.ReadCloser, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, ErrExportsDisabled
	}
	if !validExportName(name) {
		return nil, store.ErrNotFound
	}

	rc, err := s.archive.Get(ctx, exportPrefix(electionID)+name)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, store.ErrNotFound
	}
	return rc, err
}

func exportPrefix(electionID uuid.UUID) string {
	return "results/" + electionID.String() + "/"
}

// validExportName accepts "<ulid>.json".
func validExportName(name string) bool {
	id, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return false
	}
	return ids.Valid(id)
}
